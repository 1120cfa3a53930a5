// Package reliability implements configurable peer-failure handling:
// what an outstanding RequestAccess call should do when the remote
// peer times out or is unreachable.
package reliability

import (
	"context"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/sirupsen/logrus"
)

// Call is one outbound attempt at an RPC that either succeeds or
// returns an error (timeout, transport failure, ...).
type Call func(ctx context.Context) error

// Policy decides what happens when an outbound peer call fails. It
// returns nil when the caller should treat the call as successfully
// completed (i.e. count it as a received reply), or the last error
// encountered when the caller should propagate failure.
type Policy interface {
	Execute(ctx context.Context, peerID int32, call Call) error
}

// CountAsReply is the default, source-faithful policy: a single failed
// or timed-out call is treated as a received reply. It preserves
// liveness under a dead peer at the cost of mutual exclusion if the
// peer is merely slow rather than actually down.
type CountAsReply struct {
	Log *logrus.Entry
}

func (p CountAsReply) Execute(ctx context.Context, peerID int32, call Call) error {
	if err := call(ctx); err != nil {
		if p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"peer_id": peerID,
				"error":   err,
			}).Warn("peer call failed; counting as a received reply")
		}
		return nil
	}
	return nil
}

// RetryUntilReply preserves safety over liveness: it retries a failed
// call with bounded exponential backoff until it gets a definitive
// reply or the strategy's attempt limit is exhausted, in which case it
// propagates the last error to the caller instead of silently counting
// the call as answered.
type RetryUntilReply struct {
	Log         *logrus.Entry
	MaxAttempts uint
	BaseDelay   time.Duration
}

func (p RetryUntilReply) Execute(ctx context.Context, peerID int32, call Call) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	baseDelay := p.BaseDelay
	if baseDelay == 0 {
		baseDelay = 50 * time.Millisecond
	}

	var lastErr error
	err := retry.Retry(func(attempt uint) error {
		lastErr = call(ctx)
		if lastErr != nil && p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"peer_id": peerID,
				"attempt": attempt,
				"error":   lastErr,
			}).Warn("peer call failed; retrying")
		}
		return lastErr
	},
		strategy.Limit(maxAttempts),
		strategy.Backoff(backoff.Exponential(baseDelay, 2)),
	)
	if err != nil {
		return lastErr
	}
	return nil
}
