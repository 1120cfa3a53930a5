// Package clock implements a thread-safe Lamport logical clock.
package clock

import "sync"

// Clock is a monotone logical counter. The zero value starts at 0 and
// is ready to use. All operations are safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	time int64
}

// New returns a Clock starting at 0.
func New() *Clock {
	return &Clock{}
}

// Tick records a local event: it atomically advances the clock by one
// and returns the new value. Use it for every local event (starting a
// CS request, issuing a release, issuing a print RPC, or answering a
// peer after a deferred wake-up).
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time++
	return c.time
}

// Update folds in a timestamp observed on an inbound message:
// time = max(time, received) + 1. Call it on every inbound message
// before any decision is made based on that message's timestamp.
func (c *Clock) Update(received int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if received > c.time {
		c.time = received
	}
	c.time++
	return c.time
}

// Read returns the current value without advancing it. Only use it for
// logging and tests, never to drive a protocol decision.
func (c *Clock) Read() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}
