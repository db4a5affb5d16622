package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the cache layer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	switches  *prometheus.CounterVec
	connected prometheus.Gauge
	memoized  *prometheus.CounterVec
}

// NewMetrics creates the cache collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by backend and result (hit or miss)",
			},
			[]string{"backend", "result"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Swallowed cache errors by backend, operation and kind",
			},
			[]string{"backend", "op", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_operation_duration_seconds",
				Help:      "Cache operation latency",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "op"},
		),
		switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_backend_switches_total",
				Help:      "Backend switches by the backend switched to",
			},
			[]string{"backend"},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_backend_connected",
				Help:      "1 while the remote cache is active, 0 while on the local fallback",
			},
		),
		memoized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_producer_calls_total",
				Help:      "Producer invocations behind memoized accessors by outcome",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.errors, m.duration, m.switches, m.connected, m.memoized)
	}
	return m
}

func (m *Metrics) observe(backend, op string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) lookup(backend string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.requests.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) failure(backend, op string, err error) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(backend, op, errorKind(err)).Inc()
}

func (m *Metrics) switched(backend string, connected bool) {
	if m == nil {
		return
	}
	m.switches.WithLabelValues(backend).Inc()
	m.setConnected(connected)
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) produced(outcome string) {
	if m == nil {
		return
	}
	m.memoized.WithLabelValues(outcome).Inc()
}
