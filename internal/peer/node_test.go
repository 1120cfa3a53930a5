package peer_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricart-agrawala/printmutex/internal/coordinator"
	"github.com/ricart-agrawala/printmutex/internal/peer"
	"github.com/ricart-agrawala/printmutex/internal/printerservice"
	"github.com/ricart-agrawala/printmutex/internal/wire"

	"google.golang.org/grpc"
)

// testPeer wraps a Node with its own listener and server goroutine so
// tests can spin up a small real gRPC cluster on localhost.
type testPeer struct {
	node *peer.Node
	lis  net.Listener
}

func startTestPeer(t *testing.T, id int32) *testPeer {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	n := peer.NewNode(id, lis.Addr().String(), nil, nil, nil)
	go func() {
		_ = n.Serve(lis)
	}()

	tp := &testPeer{node: n, lis: lis}
	t.Cleanup(func() {
		n.Stop()
	})
	return tp
}

func startTestPrinter(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	p := printerservice.New(nil)
	p.MinDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	wire.RegisterPrinterServer(srv, p)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)
	return lis.Addr().String()
}

func connectAll(t *testing.T, peers []*testPeer) {
	t.Helper()
	for _, a := range peers {
		for _, b := range peers {
			if a == b {
				continue
			}
			require.NoError(t, a.node.ConnectToPeer(b.node.ID, b.lis.Addr().String()))
		}
	}
}

func TestSoloAcquirePrintRelease(t *testing.T) {
	printerAddr := startTestPrinter(t)

	p1 := startTestPeer(t, 1)
	p2 := startTestPeer(t, 2)
	connectAll(t, []*testPeer{p1, p2})
	require.NoError(t, p1.node.ConnectToPrinter(printerAddr))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p1.node.RequestToPrint(ctx, "hello"))

	assert.Equal(t, coordinator.Released, p1.node.Coordinator.State())
	assert.GreaterOrEqual(t, p1.node.Clock.Read(), int64(4))
}

// Three peers contend concurrently; no two should observe overlapping
// critical-section windows at the printer, regardless of arrival order.
func TestThreePeersNoOverlapAtPrinter(t *testing.T) {
	printerAddr := startTestPrinter(t)

	peers := []*testPeer{startTestPeer(t, 1), startTestPeer(t, 2), startTestPeer(t, 3)}
	connectAll(t, peers)
	for _, p := range peers {
		require.NoError(t, p.node.ConnectToPrinter(printerAddr))
	}

	type window struct{ start, end time.Time }
	windows := make(chan window, len(peers))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{}, len(peers))
	for _, p := range peers {
		p := p
		go func() {
			require.NoError(t, p.node.Acquire(ctx))
			start := time.Now()
			_, err := p.node.PrintDocument(ctx, "doc")
			require.NoError(t, err)
			end := time.Now()
			require.NoError(t, p.node.Release(ctx))
			windows <- window{start, end}
			done <- struct{}{}
		}()
	}
	for range peers {
		<-done
	}
	close(windows)

	var observed []window
	for w := range windows {
		observed = append(observed, w)
	}
	require.Len(t, observed, len(peers))
	for i := 0; i < len(observed); i++ {
		for j := i + 1; j < len(observed); j++ {
			overlap := observed[i].start.Before(observed[j].end) && observed[j].start.Before(observed[i].end)
			assert.False(t, overlap, "observed overlapping critical sections")
		}
	}
}
