package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// APIClientMetrics contains Prometheus metrics for calls to the REST backend.
type APIClientMetrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewAPIClientMetrics creates and registers backend client metrics.
func NewAPIClientMetrics(namespace string) *APIClientMetrics {
	m := &APIClientMetrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api_client",
				Name:      "calls_total",
				Help:      "Total number of backend API calls",
			},
			[]string{"endpoint", "status"}, // status: 2xx, 4xx, 5xx, transport
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api_client",
				Name:      "call_duration_seconds",
				Help:      "Duration of backend API calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}

	MustRegister(m.Calls, m.Duration)

	return m
}
