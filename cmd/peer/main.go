// Command peer runs one participant in the distributed print mutex:
// it serves PeerMutex RPCs for other peers, connects out to them and
// to the printer, and optionally generates print requests on a timer.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ricart-agrawala/printmutex/internal/metrics"
	"github.com/ricart-agrawala/printmutex/internal/peer"
	"github.com/ricart-agrawala/printmutex/internal/reliability"
	"github.com/ricart-agrawala/printmutex/internal/runconfig"
)

var autoMessages = []string{
	"Monthly Sales Report",
	"Confidential Document - Project X",
	"Pending Task List",
	"Weekly Meeting Minutes",
	"2025 Business Proposal",
	"Q4 Performance Review",
	"Service Agreement",
	"Operating Cost Spreadsheet",
}

func main() {
	if err := newPeerCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newPeerCommand() *cobra.Command {
	var (
		id              int
		port            int
		clients         string
		printerAddr     string
		onPeerFailure   string
		metricsAddr     string
		auto            bool
		autoMinSeconds  float64
		autoMaxSeconds  float64
		logLevel        string
	)

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Run one peer in the distributed print mutex",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(peerOptions{
				id:             int32(id),
				port:           port,
				clients:        clients,
				printerAddr:    printerAddr,
				onPeerFailure:  onPeerFailure,
				metricsAddr:    metricsAddr,
				auto:           auto,
				autoMinSeconds: autoMinSeconds,
				autoMaxSeconds: autoMaxSeconds,
				logLevel:       logLevel,
			})
		},
	}

	cmd.Flags().IntVar(&id, "id", 0, "unique peer identity (> 0)")
	cmd.Flags().IntVar(&port, "port", 0, "local bind port")
	cmd.Flags().StringVar(&clients, "clients", "", `addresses of every other peer: "id:host:port,..."`)
	cmd.Flags().StringVar(&printerAddr, "printer", "", "printer address (host:port)")
	cmd.Flags().StringVar(&onPeerFailure, "on-peer-failure", "count", `peer-failure policy: "count" (default, matches the source) or "retry"`)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&auto, "auto", false, "generate print requests automatically at random intervals")
	cmd.Flags().Float64Var(&autoMinSeconds, "auto-min", 5, "minimum seconds between automatic requests")
	cmd.Flags().Float64Var(&autoMaxSeconds, "auto-max", 10, "maximum seconds between automatic requests")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "logrus level")

	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("port")

	return cmd
}

type peerOptions struct {
	id             int32
	port           int
	clients        string
	printerAddr    string
	onPeerFailure  string
	metricsAddr    string
	auto           bool
	autoMinSeconds float64
	autoMaxSeconds float64
	logLevel       string
}

func runPeer(opts peerOptions) error {
	if opts.id <= 0 {
		return errors.New("--id must be > 0")
	}

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(opts.logLevel); err == nil {
		logger.SetLevel(lvl)
	}
	log := logger.WithFields(logrus.Fields{
		"peer_id": opts.id,
		"run_id":  uuid.NewString(),
	})

	peerAddrs, err := runconfig.ParsePeerList(opts.clients)
	if err != nil {
		return errors.Wrap(err, "parsing --clients")
	}

	var policy reliability.Policy
	switch opts.onPeerFailure {
	case "", "count":
		policy = reliability.CountAsReply{Log: log}
	case "retry":
		policy = reliability.RetryUntilReply{Log: log}
	default:
		return errors.Errorf("unknown --on-peer-failure %q", opts.onPeerFailure)
	}

	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg, opts.id)

	node := peer.NewNode(opts.id, fmt.Sprintf(":%d", opts.port), policy, collectors, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", node.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", node.Addr)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- node.Serve(lis) }()

	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: opts.metricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsServer.Close()
		}()
	}

	// Give peers a moment to start listening before dialing each
	// other.
	time.Sleep(2 * time.Second)

	for _, p := range peerAddrs {
		if err := node.ConnectToPeer(p.ID, p.Addr); err != nil {
			log.WithError(err).Warnf("failed to connect to peer %d", p.ID)
		}
	}
	if opts.printerAddr != "" {
		if err := node.ConnectToPrinter(opts.printerAddr); err != nil {
			return errors.Wrap(err, "connecting to printer")
		}
	}

	if opts.auto {
		go runAutomaticRequests(ctx, node, log, opts.autoMinSeconds, opts.autoMaxSeconds)
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		node.Stop()
		return nil
	case err := <-serveErr:
		return errors.Wrap(err, "peer server stopped")
	}
}

// runAutomaticRequests mirrors original_source/printing_client.py's
// run_automatic_requests: it sleeps a random interval in
// [minSeconds, maxSeconds) and issues one request_to_print cycle,
// repeating until ctx is cancelled.
func runAutomaticRequests(ctx context.Context, node *peer.Node, log *logrus.Entry, minSeconds, maxSeconds float64) {
	for {
		delay := randomDuration(minSeconds, maxSeconds)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		message := autoMessages[rand.Intn(len(autoMessages))]
		if err := node.RequestToPrint(ctx, message); err != nil {
			log.WithError(err).Warn("automatic print request failed")
		}
	}
}

func randomDuration(minSeconds, maxSeconds float64) time.Duration {
	if maxSeconds <= minSeconds {
		return time.Duration(minSeconds * float64(time.Second))
	}
	span := maxSeconds - minSeconds
	return time.Duration((minSeconds + rand.Float64()*span) * float64(time.Second))
}
