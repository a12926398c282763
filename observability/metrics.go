package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type engineMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// EngineMetrics returns the lazily-initialised metrics registry used to
// record swap engine activity exposed over RPC.
func EngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapmarket",
				Subsystem: "engine",
				Name:      "requests_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapmarket",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Total engine operation failures segmented by operation.",
			}, []string{"operation"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "swapmarket",
				Subsystem: "engine",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			engineRegistry.requests,
			engineRegistry.errors,
			engineRegistry.latency,
		)
	})
	return engineRegistry
}

// Observe records the outcome and duration of a single engine operation.
func (m *engineMetrics) Observe(operation string, err error, started time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(operation).Inc()
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
