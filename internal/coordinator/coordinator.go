// Package coordinator implements the Ricart–Agrawala mutual-exclusion
// state machine. It is transport-agnostic: callers supply the
// broadcast functions that actually reach other peers, and the
// coordinator drives state transitions, the tie-break rule, and
// deferred-reply bookkeeping.
package coordinator

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ricart-agrawala/printmutex/internal/clock"
	"github.com/ricart-agrawala/printmutex/internal/metrics"
	"github.com/ricart-agrawala/printmutex/internal/wire"
)

// State is one of the three Ricart–Agrawala states.
type State int

const (
	Released State = iota
	Wanted
	Held
)

func (s State) String() string {
	switch s {
	case Released:
		return "RELEASED"
	case Wanted:
		return "WANTED"
	case Held:
		return "HELD"
	default:
		return "UNKNOWN"
	}
}

// ErrAcquireInProgress is returned by Acquire if the peer already has
// an outstanding request; this coordinator does not support concurrent
// acquisitions from the same peer.
var ErrAcquireInProgress = errors.New("coordinator: acquire already in progress")

// BroadcastRequest fans an AccessRequest out to every other configured
// peer and returns once every peer has replied (granted immediately,
// granted after a deferred wait, or counted as a reply per the active
// failure policy, see internal/reliability). It is supplied by the
// Peer Transport layer (internal/peer), which owns the outbound stubs.
type BroadcastRequest func(ctx context.Context, req *wire.AccessRequest) error

// BroadcastRelease fans an AccessRelease out to every other configured
// peer; failures are logged and otherwise ignored.
type BroadcastRelease func(ctx context.Context, rel *wire.AccessRelease)

// deferredEntry is one reply this peer owes another peer once it
// leaves HELD.
type deferredEntry struct {
	peerID int32
	done   chan struct{}
}

// Coordinator is one peer's Ricart–Agrawala state machine. It owns its
// own state, outstanding-request record, and deferred-reply queue; it
// shares a *clock.Clock with the rest of its peer process.
type Coordinator struct {
	ID    int32
	Clock *clock.Clock

	log     *logrus.Entry
	metrics *metrics.Collectors

	acquireMu sync.Mutex // serializes acquire()/release() cycles

	stateMu            sync.Mutex
	state              State
	myRequestTimestamp int64
	requestNumber      int64

	deferredMu sync.Mutex
	deferred   *list.List // of *deferredEntry

	heldSince time.Time
}

// New constructs a Coordinator for peer id, sharing clk with the rest
// of the peer process. metrics and log may be nil.
func New(id int32, clk *clock.Clock, m *metrics.Collectors, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{
		ID:       id,
		Clock:    clk,
		log:      log,
		metrics:  m,
		deferred: list.New(),
	}
}

// State returns the coordinator's current state. Only use it for
// logging and tests, never to drive a caller's own decision, since it
// can change the instant the lock is released.
func (c *Coordinator) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// CurrentRequestNumber returns the request number of the peer's most
// recent (or in-flight) acquisition. It is used to stamp the
// PrintRequest issued while HELD, between acquire() and release().
func (c *Coordinator) CurrentRequestNumber() int64 {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.requestNumber
}

// HasPriority orders two (timestamp, peer ID) request stamps: the pair
// (ts1, id1) has priority over (ts2, id2) iff it is lexicographically
// smaller. IDs are unique, so this is a strict total order.
func HasPriority(ts1 int64, id1 int32, ts2 int64, id2 int32) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	return id1 < id2
}

// Acquire blocks until the caller may enter the critical section. It
// transitions RELEASED -> WANTED -> HELD.
func (c *Coordinator) Acquire(ctx context.Context, broadcast BroadcastRequest) error {
	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()

	c.stateMu.Lock()
	if c.state != Released {
		c.stateMu.Unlock()
		return ErrAcquireInProgress
	}
	ts := c.Clock.Tick()
	c.requestNumber++
	c.myRequestTimestamp = ts
	reqNum := c.requestNumber
	c.state = Wanted
	c.stateMu.Unlock()

	waitStart := time.Now()
	c.log.WithFields(logrus.Fields{
		"timestamp":      ts,
		"request_number": reqNum,
	}).Info("requesting critical section access")

	req := &wire.AccessRequest{
		ClientID:         c.ID,
		LamportTimestamp: ts,
		RequestNumber:    reqNum,
	}
	if err := broadcast(ctx, req); err != nil {
		// Roll back to RELEASED; the caller never entered HELD.
		c.stateMu.Lock()
		c.state = Released
		c.stateMu.Unlock()
		return errors.Wrap(err, "broadcasting access request")
	}

	c.stateMu.Lock()
	c.state = Held
	c.stateMu.Unlock()
	c.heldSince = time.Now()

	if c.metrics != nil {
		c.metrics.Acquisitions.Inc()
		c.metrics.WaitSeconds.Observe(time.Since(waitStart).Seconds())
	}
	c.log.Info("access granted, entering critical section")
	return nil
}

// Release leaves the critical section: it advances the clock, drains
// every deferred reply in enqueue order, and broadcasts an
// AccessRelease to every peer.
func (c *Coordinator) Release(ctx context.Context, broadcast BroadcastRelease) error {
	c.stateMu.Lock()
	if c.state != Held {
		c.stateMu.Unlock()
		return errors.New("coordinator: release called while not HELD")
	}
	c.state = Released
	reqNum := c.requestNumber
	c.stateMu.Unlock()

	releaseTS := c.Clock.Tick()

	if c.metrics != nil && !c.heldSince.IsZero() {
		c.metrics.HoldSeconds.Observe(time.Since(c.heldSince).Seconds())
	}

	c.drainDeferred()

	c.log.WithField("timestamp", releaseTS).Info("releasing critical section")
	broadcast(ctx, &wire.AccessRelease{
		ClientID:         c.ID,
		LamportTimestamp: releaseTS,
		RequestNumber:    reqNum,
	})
	return nil
}

// drainDeferred fires every deferred signal in the order it was
// enqueued.
func (c *Coordinator) drainDeferred() {
	c.deferredMu.Lock()
	defer c.deferredMu.Unlock()

	for e := c.deferred.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*deferredEntry)
		c.log.WithField("peer_id", entry.peerID).Debug("releasing deferred reply")
		close(entry.done)
		c.deferred.Remove(e)
		if c.metrics != nil {
			c.metrics.DeferredQueue.Dec()
		}
		e = next
	}
}

// OnRequest handles an inbound AccessRequest from another peer: grant
// immediately, or defer the reply until this peer's own hold ends.
func (c *Coordinator) OnRequest(ctx context.Context, req *wire.AccessRequest) (*wire.AccessResponse, error) {
	ts := c.Clock.Update(req.LamportTimestamp)

	c.log.WithFields(logrus.Fields{
		"from_peer_id": req.ClientID,
		"timestamp":    req.LamportTimestamp,
	}).Debug("received access request")

	c.stateMu.Lock()
	var defer_ bool
	switch c.state {
	case Held:
		defer_ = true
	case Wanted:
		defer_ = HasPriority(c.myRequestTimestamp, c.ID, req.LamportTimestamp, req.ClientID)
	case Released:
		defer_ = false
	}
	c.stateMu.Unlock()

	if !defer_ {
		return &wire.AccessResponse{AccessGranted: true, LamportTimestamp: ts}, nil
	}

	done := make(chan struct{})
	c.deferredMu.Lock()
	elem := c.deferred.PushBack(&deferredEntry{peerID: req.ClientID, done: done})
	c.deferredMu.Unlock()
	if c.metrics != nil {
		c.metrics.DeferredQueue.Inc()
		c.metrics.DeferredTotal.Inc()
	}

	c.log.WithField("peer_id", req.ClientID).Debug("deferring response")

	select {
	case <-done:
		replyTS := c.Clock.Tick()
		c.log.WithField("peer_id", req.ClientID).Debug("granting deferred access")
		return &wire.AccessResponse{AccessGranted: true, LamportTimestamp: replyTS}, nil
	case <-ctx.Done():
		c.removeDeferred(elem)
		return nil, ctx.Err()
	}
}

func (c *Coordinator) removeDeferred(elem *list.Element) {
	c.deferredMu.Lock()
	defer c.deferredMu.Unlock()
	for e := c.deferred.Front(); e != nil; e = e.Next() {
		if e == elem {
			c.deferred.Remove(e)
			if c.metrics != nil {
				c.metrics.DeferredQueue.Dec()
			}
			return
		}
	}
}

// OnRelease handles an inbound AccessRelease. It only advances the
// clock and logs (reply accounting is driven entirely by
// AccessResponse, not AccessRelease).
func (c *Coordinator) OnRelease(req *wire.AccessRelease) {
	ts := c.Clock.Update(req.LamportTimestamp)
	c.log.WithFields(logrus.Fields{
		"from_peer_id":   req.ClientID,
		"timestamp":      ts,
		"request_number": req.RequestNumber,
	}).Debug("peer released the critical section")
}
