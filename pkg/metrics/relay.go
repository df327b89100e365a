package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics contains Prometheus metrics for the queue-to-backend relay.
type RelayMetrics struct {
	BatchesForwarded  *prometheus.CounterVec
	ReadingsForwarded prometheus.Counter
	MalformedMessages prometheus.Counter
	ForwardDuration   prometheus.Histogram
	PendingReadings   prometheus.Gauge
}

// NewRelayMetrics creates and registers relay metrics.
func NewRelayMetrics(namespace string) *RelayMetrics {
	m := &RelayMetrics{
		BatchesForwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "batches_total",
				Help:      "Total number of batches handed to the backend",
			},
			[]string{"outcome"}, // outcome: acked, requeued, dropped
		),
		ReadingsForwarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "readings_forwarded_total",
				Help:      "Total number of readings accepted by the backend",
			},
		),
		MalformedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "malformed_messages_total",
				Help:      "Messages that could not be decoded as readings",
			},
		),
		ForwardDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "forward_duration_seconds",
				Help:      "Duration of bulk forwards to the backend",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PendingReadings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "pending_readings",
				Help:      "Readings buffered and not yet forwarded",
			},
		),
	}

	MustRegister(
		m.BatchesForwarded,
		m.ReadingsForwarded,
		m.MalformedMessages,
		m.ForwardDuration,
		m.PendingReadings,
	)

	return m
}
