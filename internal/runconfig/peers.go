// Package runconfig parses the comma-separated peer list given to the
// --clients flag. The other flags are parsed by the commands in cmd/.
package runconfig

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PeerAddress is one entry from --clients "<id>:<host>:<port>,...".
type PeerAddress struct {
	ID   int32
	Addr string // host:port
}

// ParsePeerList parses the --clients flag value. Each entry must be
// "id:host:port"; a duplicate ID is a configuration error, fatal at
// startup.
func ParsePeerList(raw string) ([]PeerAddress, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	seen := make(map[int32]bool)
	var peers []PeerAddress
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, errors.Errorf("invalid peer entry %q: want id:host:port", entry)
		}

		id, err := strconv.ParseInt(parts[0], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid peer id in %q", entry)
		}
		if id <= 0 {
			return nil, errors.Errorf("peer id must be > 0, got %d", id)
		}
		if seen[int32(id)] {
			return nil, errors.Errorf("duplicate peer id %d", id)
		}
		seen[int32(id)] = true

		host, port := parts[1], parts[2]
		if host == "" || port == "" {
			return nil, errors.Errorf("invalid peer entry %q: empty host or port", entry)
		}

		peers = append(peers, PeerAddress{ID: int32(id), Addr: host + ":" + port})
	}
	return peers, nil
}
