package clock_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ricart-agrawala/printmutex/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTickIsMonotone(t *testing.T) {
	c := clock.New()
	require.EqualValues(t, 1, c.Tick())
	require.EqualValues(t, 2, c.Tick())
	require.EqualValues(t, 3, c.Tick())
}

func TestUpdateWithLowerAndEqualReceived(t *testing.T) {
	c := clock.New()
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	require.EqualValues(t, 5, c.Read())

	require.EqualValues(t, 6, c.Update(2))
	c2 := clock.New()
	for i := 0; i < 5; i++ {
		c2.Tick()
	}
	require.EqualValues(t, 6, c2.Update(5))
}

func TestUpdateWithHigherReceived(t *testing.T) {
	c := clock.New()
	c.Tick()
	c.Tick()
	require.EqualValues(t, 11, c.Update(10))
	require.EqualValues(t, 12, c.Tick())
}

// Concurrent ticks across multiple goroutines must yield a dense,
// duplicate-free sequence with no two goroutines observing the same
// value.
func TestConcurrentTicksAreDistinct(t *testing.T) {
	const goroutines = 5
	const perGoroutine = 20

	c := clock.New()
	results := make(chan int64, goroutines*perGoroutine)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- c.Tick()
			}
		}()
	}
	wg.Wait()
	close(results)

	got := make([]int64, 0, goroutines*perGoroutine)
	for v := range results {
		got = append(got, v)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	want := make([]int64, goroutines*perGoroutine)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, got)
}
