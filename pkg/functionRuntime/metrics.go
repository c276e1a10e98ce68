package functionRuntime

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oaas_runtime"

const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeBadRequest = "bad_request"
	outcomeNotFound   = "not_found"

	unknownFunction = "unknown"
)

// Metrics are kept in a registry per server so several servers can live in one process.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	inFlight    prometheus.Gauge
	duration    *prometheus.HistogramVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Number of handled tasks by function and outcome.",
		}, []string{"function", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invocations_in_flight",
			Help:      "Number of tasks currently being handled.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Time spent handling a task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
	}
	m.registry.MustRegister(m.invocations, m.inFlight, m.duration)
	return m
}

func (m *Metrics) begin() time.Time {
	m.inFlight.Inc()
	return time.Now()
}

func (m *Metrics) end(function, outcome string, start time.Time) {
	m.inFlight.Dec()
	m.invocations.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(time.Since(start).Seconds())
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
