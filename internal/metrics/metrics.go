// Package metrics instruments the mutex coordinator with Prometheus
// collectors (acquisitions, hold time, wait time, and deferred-queue
// depth).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups the metrics one peer registers. Each peer process
// owns its own Collectors instance and registry so that multiple peers
// can run in one test binary without colliding.
type Collectors struct {
	Acquisitions    prometheus.Counter
	WaitSeconds     prometheus.Histogram
	HoldSeconds     prometheus.Histogram
	DeferredQueue   prometheus.Gauge
	DeferredTotal   prometheus.Counter
	PeerCallFailure *prometheus.CounterVec
}

// NewCollectors builds and registers a Collectors set on reg, labeling
// every metric with the owning peer's ID.
func NewCollectors(reg prometheus.Registerer, peerID int32) *Collectors {
	labels := prometheus.Labels{"peer_id": strconv.Itoa(int(peerID))}

	c := &Collectors{
		Acquisitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "printmutex_acquisitions_total",
			Help:        "Number of times this peer entered the critical section.",
			ConstLabels: labels,
		}),
		WaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "printmutex_acquire_wait_seconds",
			Help:        "Time spent waiting between acquire() and entering HELD.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		HoldSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "printmutex_hold_seconds",
			Help:        "Time spent HELD, from acquire() return to release().",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		DeferredQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "printmutex_deferred_queue_depth",
			Help:        "Current number of deferred replies owed by this peer.",
			ConstLabels: labels,
		}),
		DeferredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "printmutex_deferred_replies_total",
			Help:        "Total number of replies this peer has deferred.",
			ConstLabels: labels,
		}),
		PeerCallFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "printmutex_peer_call_failures_total",
			Help:        "Outbound peer RPC failures, by remote peer ID.",
			ConstLabels: labels,
		}, []string{"remote_peer_id"}),
	}

	reg.MustRegister(
		c.Acquisitions,
		c.WaitSeconds,
		c.HoldSeconds,
		c.DeferredQueue,
		c.DeferredTotal,
		c.PeerCallFailure,
	)
	return c
}
