package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	payouts     *prometheus.CounterVec
	rollbacks   *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	queryCount  prometheus.Gauge
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance on a
// private registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of accepted bridge operations",
			},
			[]string{"op"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Total number of rejected bridge operations",
			},
			[]string{"op", "kind"},
		),
		payouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_amount_total",
				Help:      "Total reward value released, by reward leg",
			},
			[]string{"leg"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total number of state restores after a failed transfer",
			},
			[]string{"op"},
		),
		opLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_latency_seconds",
				Help:      "Bridge operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"op"},
		),
		queryCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queries_posted",
				Help:      "Number of queries ever posted",
			},
		),
	}

	m.registry.MustRegister(
		m.transitions,
		m.rejections,
		m.payouts,
		m.rollbacks,
		m.opLatency,
		m.queryCount,
	)
	return m
}

func (m *PrometheusMetrics) IncTransition(op string) {
	m.transitions.WithLabelValues(op).Inc()
}

func (m *PrometheusMetrics) IncRejection(op, kind string) {
	m.rejections.WithLabelValues(op, kind).Inc()
}

func (m *PrometheusMetrics) AddPayout(leg string, amount uint64) {
	m.payouts.WithLabelValues(leg).Add(float64(amount))
}

func (m *PrometheusMetrics) IncRollback(op string) {
	m.rollbacks.WithLabelValues(op).Inc()
}

func (m *PrometheusMetrics) ObserveOpLatency(op string, d time.Duration) {
	m.opLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetQueryCount(n uint64) {
	m.queryCount.Set(float64(n))
}

// Registry returns the private registry the metrics are registered on.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler returns a typed HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
