// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for sync sessions and the reference server.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures collector construction.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "rostersync").
	Namespace string

	// ConstLabels are added to every collector.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for cycle duration.
	Buckets []float64

	// Registry receives the collectors. Nil leaves them unregistered,
	// which is the default so several sessions can coexist in one process.
	Registry prometheus.Registerer
}

// MetricsOption configures collector construction.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registerer.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func newMetricsConfig(opts []MetricsOption) MetricsConfig {
	cfg := MetricsConfig{
		Namespace: "rostersync",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// SessionMetrics observes one client session's worker.
type SessionMetrics struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	SendFailures  prometheus.Counter
	RecvFailures  *prometheus.CounterVec // phase: header | record
	Discarded     prometheus.Counter
	Pruned        prometheus.Counter
	RosterSize    prometheus.Gauge
	Connected     prometheus.Gauge
}

// NewSessionMetrics builds the session collectors.
func NewSessionMetrics(opts ...MetricsOption) *SessionMetrics {
	cfg := newMetricsConfig(opts)
	factory := promauto.With(cfg.Registry)
	const sub = "session"

	return &SessionMetrics{
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "cycles_total",
			Help:        "Completed send-then-receive cycles",
			ConstLabels: cfg.ConstLabels,
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "cycle_duration_seconds",
			Help:        "Wall time of a cycle from first send attempt to last record",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "send_failures_total",
			Help:        "Failed send attempts, each followed by a retry",
			ConstLabels: cfg.ConstLabels,
		}),
		RecvFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "recv_failures_total",
			Help:        "Failed receives by phase, each restarting the cycle at send",
			ConstLabels: cfg.ConstLabels,
		}, []string{"phase"}),
		Discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "discarded_records_total",
			Help:        "Received records dropped for an out-of-range client id",
			ConstLabels: cfg.ConstLabels,
		}),
		Pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "pruned_entries_total",
			Help:        "Roster entries expired because their client left the broadcast",
			ConstLabels: cfg.ConstLabels,
		}),
		RosterSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "roster_size",
			Help:        "Remote clients currently in the roster",
			ConstLabels: cfg.ConstLabels,
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "connected",
			Help:        "1 while the server has assigned this client an id",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// ServerMetrics observes the reference server.
type ServerMetrics struct {
	Clients     prometheus.Gauge
	Connections *prometheus.CounterVec // result: accepted | refused
	Cycles      prometheus.Counter
	RecordsOut  prometheus.Counter
}

// NewServerMetrics builds the server collectors.
func NewServerMetrics(opts ...MetricsOption) *ServerMetrics {
	cfg := newMetricsConfig(opts)
	factory := promauto.With(cfg.Registry)
	const sub = "server"

	return &ServerMetrics{
		Clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "clients",
			Help:        "Clients holding an assigned id",
			ConstLabels: cfg.ConstLabels,
		}),
		Connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "connections_total",
			Help:        "Incoming connections by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "cycles_total",
			Help:        "Client records answered with a roster broadcast",
			ConstLabels: cfg.ConstLabels,
		}),
		RecordsOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   sub,
			Name:        "records_sent_total",
			Help:        "Records written to clients",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}
