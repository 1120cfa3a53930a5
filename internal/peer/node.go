// Package peer wires the transport-agnostic coordinator.Coordinator to
// the network: a gRPC server exposing RequestAccess/ReleaseAccess to
// other peers, and outbound stubs to every other peer and to the
// printer.
package peer

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ricart-agrawala/printmutex/internal/clock"
	"github.com/ricart-agrawala/printmutex/internal/coordinator"
	"github.com/ricart-agrawala/printmutex/internal/metrics"
	"github.com/ricart-agrawala/printmutex/internal/reliability"
	"github.com/ricart-agrawala/printmutex/internal/wire"
)

// DefaultCallTimeout is the per-call deadline for RequestAccess and
// ReleaseAccess.
const DefaultCallTimeout = 5 * time.Second

// DefaultPrintTimeout is the deadline for the unary SendToPrinter call.
const DefaultPrintTimeout = 10 * time.Second

// Node is one peer process: it owns a Lamport clock, a Ricart–Agrawala
// coordinator, a gRPC server for inbound peer calls, and outbound
// stubs to every other peer and the printer.
type Node struct {
	ID          int32
	Addr        string
	Clock       *clock.Clock
	Coordinator *coordinator.Coordinator

	CallTimeout  time.Duration
	PrintTimeout time.Duration

	policy  reliability.Policy
	log     *logrus.Entry
	metrics *metrics.Collectors

	server *grpc.Server

	mu            sync.RWMutex
	peerConns     map[int32]*grpc.ClientConn
	peers         map[int32]wire.PeerMutexClient
	printerConn   *grpc.ClientConn
	printerClient wire.PrinterClient
}

// NewNode constructs a Node. policy, m, and log may be nil, in which
// case a reliability.CountAsReply policy, no metrics, and a standard
// logrus entry are used.
func NewNode(id int32, addr string, policy reliability.Policy, m *metrics.Collectors, log *logrus.Entry) *Node {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("peer_id", id)
	if policy == nil {
		policy = reliability.CountAsReply{Log: log}
	}

	clk := clock.New()
	return &Node{
		ID:           id,
		Addr:         addr,
		Clock:        clk,
		Coordinator:  coordinator.New(id, clk, m, log),
		CallTimeout:  DefaultCallTimeout,
		PrintTimeout: DefaultPrintTimeout,
		policy:       policy,
		log:          log,
		metrics:      m,
		peerConns:    make(map[int32]*grpc.ClientConn),
		peers:        make(map[int32]wire.PeerMutexClient),
	}
}

// ConnectToPeer dials another peer and stores its stub.
func (n *Node) ConnectToPeer(id int32, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return errors.Wrapf(err, "connecting to peer %d at %s", id, addr)
	}
	n.mu.Lock()
	n.peerConns[id] = conn
	n.peers[id] = wire.NewPeerMutexClient(conn)
	n.mu.Unlock()
	n.log.WithFields(logrus.Fields{"remote_peer_id": id, "addr": addr}).Info("connected to peer")
	return nil
}

// ConnectToPrinter dials the shared printer.
func (n *Node) ConnectToPrinter(addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return errors.Wrapf(err, "connecting to printer at %s", addr)
	}
	n.mu.Lock()
	n.printerConn = conn
	n.printerClient = wire.NewPrinterClient(conn)
	n.mu.Unlock()
	n.log.WithField("addr", addr).Info("connected to printer")
	return nil
}

// Serve registers this Node as the PeerMutex server on lis and blocks
// until the server stops.
func (n *Node) Serve(lis net.Listener) error {
	n.server = grpc.NewServer()
	wire.RegisterPeerMutexServer(n.server, n)
	return n.server.Serve(lis)
}

// Stop gracefully stops the server and closes every outbound
// connection. Idempotent.
func (n *Node) Stop() {
	if n.server != nil {
		n.server.GracefulStop()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, conn := range n.peerConns {
		_ = conn.Close()
	}
	if n.printerConn != nil {
		_ = n.printerConn.Close()
	}
}

// RequestAccess implements wire.PeerMutexServer by delegating to the
// coordinator.
func (n *Node) RequestAccess(ctx context.Context, req *wire.AccessRequest) (*wire.AccessResponse, error) {
	return n.Coordinator.OnRequest(ctx, req)
}

// ReleaseAccess implements wire.PeerMutexServer.
func (n *Node) ReleaseAccess(ctx context.Context, req *wire.AccessRelease) (*wire.Empty, error) {
	n.Coordinator.OnRelease(req)
	return &wire.Empty{}, nil
}

// Acquire blocks until this peer may enter the critical section.
func (n *Node) Acquire(ctx context.Context) error {
	return n.Coordinator.Acquire(ctx, n.broadcastRequest)
}

// Release leaves the critical section.
func (n *Node) Release(ctx context.Context) error {
	return n.Coordinator.Release(ctx, n.broadcastRelease)
}

// PrintDocument issues one unary SendToPrinter call. Callers are
// expected to hold the critical section first via Acquire.
func (n *Node) PrintDocument(ctx context.Context, message string) (*wire.PrintResponse, error) {
	n.mu.RLock()
	client := n.printerClient
	n.mu.RUnlock()
	if client == nil {
		return nil, errors.New("peer: not connected to a printer")
	}

	ts := n.Clock.Tick()
	req := &wire.PrintRequest{
		ClientID:         n.ID,
		MessageContent:   message,
		LamportTimestamp: ts,
		RequestNumber:    n.Coordinator.CurrentRequestNumber(),
	}

	cctx, cancel := context.WithTimeout(ctx, n.PrintTimeout)
	defer cancel()

	resp, err := client.SendToPrinter(cctx, req)
	if err != nil {
		n.log.WithError(err).Warn("print request failed")
		return nil, errors.Wrap(err, "sending print request")
	}
	n.Clock.Update(resp.LamportTimestamp)
	n.log.WithField("confirmation", resp.ConfirmationMessage).Info("print completed")
	return resp, nil
}

// RequestToPrint runs the full acquire -> print -> release cycle.
func (n *Node) RequestToPrint(ctx context.Context, message string) error {
	if err := n.Acquire(ctx); err != nil {
		return err
	}
	_, printErr := n.PrintDocument(ctx, message)
	// Always release, even if printing failed, so a broken printer
	// connection never leaves the resource held forever.
	if err := n.Release(ctx); err != nil {
		if printErr != nil {
			return errors.Wrap(err, printErr.Error())
		}
		return err
	}
	return printErr
}

// broadcastRequest fans req out to every peer concurrently via a
// structured errgroup. It returns once every peer has replied, counts
// as a reply, or the active reliability.Policy has exhausted its
// retries.
func (n *Node) broadcastRequest(ctx context.Context, req *wire.AccessRequest) error {
	peers := n.snapshotPeers()
	n.log.WithField("peer_count", len(peers)).Debug("broadcasting access request")

	g, gctx := errgroup.WithContext(ctx)
	for id, client := range peers {
		id, client := id, client
		g.Go(func() error {
			return n.policy.Execute(gctx, id, func(ctx context.Context) error {
				cctx, cancel := context.WithTimeout(ctx, n.CallTimeout)
				defer cancel()
				resp, err := client.RequestAccess(cctx, req)
				if err != nil {
					if n.metrics != nil {
						n.metrics.PeerCallFailure.WithLabelValues(strconv.Itoa(int(id))).Inc()
					}
					return err
				}
				n.Clock.Update(resp.LamportTimestamp)
				return nil
			})
		})
	}
	return g.Wait()
}

// broadcastRelease fans rel out to every peer concurrently; failures
// are logged and otherwise ignored (a missed release notification is
// harmless once the peer's own clock and deferred queue catch up).
func (n *Node) broadcastRelease(ctx context.Context, rel *wire.AccessRelease) {
	peers := n.snapshotPeers()

	var wg sync.WaitGroup
	wg.Add(len(peers))
	for id, client := range peers {
		id, client := id, client
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, n.CallTimeout)
			defer cancel()
			if _, err := client.ReleaseAccess(cctx, rel); err != nil {
				n.log.WithFields(logrus.Fields{"remote_peer_id": id, "error": err}).Warn("release notification failed")
			}
		}()
	}
	wg.Wait()
}

func (n *Node) snapshotPeers() map[int32]wire.PeerMutexClient {
	n.mu.RLock()
	defer n.mu.RUnlock()
	peers := make(map[int32]wire.PeerMutexClient, len(n.peers))
	for id, c := range n.peers {
		peers[id] = c
	}
	return peers
}
