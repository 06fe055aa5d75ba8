package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bounty collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	escrowFlow  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bounty_transitions_total",
			Help: "Lifecycle operations by operation and result code.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bounty_transition_duration_seconds",
			Help:    "Latency of lifecycle operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		escrowFlow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bounty_escrow_flow_total",
			Help: "Native units moved into (in) and out of (out) vaults.",
		}, []string{"direction"}),
	}
	m.registry.MustRegister(m.transitions, m.duration, m.escrowFlow)
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTransition records one operation outcome. result is "ok" or an error code.
func (m *Metrics) ObserveTransition(op, result string, took time.Duration) {
	m.transitions.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

// EscrowIn records funds deposited into a vault.
func (m *Metrics) EscrowIn(amount uint64) {
	m.escrowFlow.WithLabelValues("in").Add(float64(amount))
}

// EscrowOut records funds released from a vault.
func (m *Metrics) EscrowOut(amount uint64) {
	m.escrowFlow.WithLabelValues("out").Add(float64(amount))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
