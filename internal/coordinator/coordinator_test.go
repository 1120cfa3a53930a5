package coordinator_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ricart-agrawala/printmutex/internal/clock"
	"github.com/ricart-agrawala/printmutex/internal/coordinator"
	"github.com/ricart-agrawala/printmutex/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// HasPriority must be a strict total order: antisymmetric on distinct
// inputs, false on equal inputs.
func TestHasPriority(t *testing.T) {
	assert.True(t, coordinator.HasPriority(1, 2, 2, 1))
	assert.False(t, coordinator.HasPriority(2, 1, 1, 2))

	assert.True(t, coordinator.HasPriority(5, 1, 5, 2))
	assert.False(t, coordinator.HasPriority(5, 2, 5, 1))

	assert.False(t, coordinator.HasPriority(5, 1, 5, 1))
}

func noopRequest(ctx context.Context, req *wire.AccessRequest) error { return nil }
func noopRelease(ctx context.Context, rel *wire.AccessRelease)       {}

func TestDeferredDrainageFiresEachReplyExactlyOnce(t *testing.T) {
	c := coordinator.New(1, clock.New(), nil, nil)

	// Peer 1 is HELD; peers 2 and 3 request access and should be
	// deferred, then released once peer 1 releases.
	require.NoError(t, c.Acquire(context.Background(), noopRequest))

	order := make(chan int32, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for _, peerID := range []int32{2, 3} {
		peerID := peerID
		go func() {
			defer wg.Done()
			resp, err := c.OnRequest(context.Background(), &wire.AccessRequest{
				ClientID:         peerID,
				LamportTimestamp: 1,
			})
			require.NoError(t, err)
			assert.True(t, resp.AccessGranted)
			order <- peerID
		}()
	}

	// Give both goroutines time to enqueue before releasing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, c.Release(context.Background(), noopRelease))

	wg.Wait()
	close(order)

	var got []int32
	for id := range order {
		got = append(got, id)
	}
	assert.ElementsMatch(t, []int32{2, 3}, got)
	assert.Equal(t, coordinator.Released, c.State())
}

// Two peers whose request timestamps collide at the same value: the
// peer whose own pending request has priority (here, the lower ID)
// defers its reply to the higher-ID peer's request, while the
// higher-ID peer replies immediately to the lower-ID peer's request,
// so the lower-ID peer is the one that gets to enter HELD first.
func TestTieBreakByIDWhenTimestampsCollide(t *testing.T) {
	lowID, highID := int32(1), int32(2)
	low := coordinator.New(lowID, clock.New(), nil, nil)
	high := coordinator.New(highID, clock.New(), nil, nil)

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = low.Acquire(context.Background(), func(ctx context.Context, req *wire.AccessRequest) error {
			<-block
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		_ = high.Acquire(context.Background(), func(ctx context.Context, req *wire.AccessRequest) error {
			<-block
			return nil
		})
	}()
	time.Sleep(30 * time.Millisecond) // let both settle into WANTED at ts=1

	// high's request reaches low: low has priority (lower id at equal
	// ts) so low must defer (the call should not return yet).
	lowReplied := make(chan struct{})
	go func() {
		_, _ = low.OnRequest(context.Background(), &wire.AccessRequest{ClientID: highID, LamportTimestamp: 1})
		close(lowReplied)
	}()
	select {
	case <-lowReplied:
		t.Fatal("low-ID peer replied immediately but should have deferred to the higher-priority tie-break loser")
	case <-time.After(50 * time.Millisecond):
		// expected: still blocked
	}

	// low's request reaches high: high has no priority, so it must
	// reply immediately.
	resp, err := high.OnRequest(context.Background(), &wire.AccessRequest{ClientID: lowID, LamportTimestamp: 1})
	require.NoError(t, err)
	assert.True(t, resp.AccessGranted)

	close(block)
	wg.Wait()

	// low is now HELD with a deferred reply owed to high; release it
	// so the blocked OnRequest goroutine above completes.
	require.NoError(t, low.Release(context.Background(), noopRelease))
	<-lowReplied
	require.NoError(t, high.Release(context.Background(), noopRelease))
}

func TestMutualExclusionUnderConcurrentAcquire(t *testing.T) {
	ids := []int32{1, 2, 3}
	nodes := make(map[int32]*coordinator.Coordinator, len(ids))
	for _, id := range ids {
		nodes[id] = coordinator.New(id, clock.New(), nil, nil)
	}

	var inCS int32
	var violations int32
	var wg sync.WaitGroup

	broadcastFor := func(selfID int32) coordinator.BroadcastRequest {
		return func(ctx context.Context, req *wire.AccessRequest) error {
			for peerID, node := range nodes {
				if peerID == selfID {
					continue
				}
				if _, err := node.OnRequest(ctx, req); err != nil {
					return err
				}
			}
			return nil
		}
	}
	releaseFor := func(selfID int32) coordinator.BroadcastRelease {
		return func(ctx context.Context, rel *wire.AccessRelease) {
			for peerID, node := range nodes {
				if peerID == selfID {
					continue
				}
				node.OnRelease(rel)
			}
		}
	}

	const rounds = 10
	for _, id := range ids {
		id := id
		node := nodes[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				require.NoError(t, node.Acquire(ctx, broadcastFor(id)))
				if !atomic.CompareAndSwapInt32(&inCS, 0, 1) {
					atomic.AddInt32(&violations, 1)
				} else {
					time.Sleep(time.Millisecond)
					atomic.StoreInt32(&inCS, 0)
				}
				require.NoError(t, node.Release(ctx, releaseFor(id)))
				cancel()
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, violations, "observed overlapping critical-section entries")
}
