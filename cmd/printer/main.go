// Command printer runs the shared, stateless printer as its own
// process: any peer with the address can dial in and print.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/ricart-agrawala/printmutex/internal/printerservice"
	"github.com/ricart-agrawala/printmutex/internal/wire"
)

func main() {
	if err := newPrinterCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newPrinterCommand() *cobra.Command {
	var (
		port        int
		metricsAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "printer",
		Short: "Run the shared printer service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrinter(port, metricsAddr, logLevel)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "bind port")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "logrus level")
	_ = cmd.MarkFlagRequired("port")

	return cmd
}

func runPrinter(port int, metricsAddr, logLevel string) error {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(logLevel); err == nil {
		logger.SetLevel(lvl)
	}
	log := logger.WithField("component", "printer")

	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", addr)
	}

	printer := printerservice.New(log)

	reg := prometheus.NewRegistry()
	jobsGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "printmutex",
		Subsystem: "printer",
		Name:      "jobs_completed_total",
		Help:      "Total print jobs completed by this printer process.",
	}, func() float64 { return float64(printer.JobCount()) })
	reg.MustRegister(jobsGauge)

	srv := grpc.NewServer()
	wire.RegisterPrinterServer(srv, printer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
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

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(lis) }()

	log.WithField("addr", addr).Info("printer listening")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		srv.GracefulStop()
		return nil
	case err := <-serveErr:
		return errors.Wrap(err, "printer server stopped")
	}
}
