package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the telemetry simulator.
type SimulatorMetrics struct {
	ReadingsGenerated *prometheus.CounterVec
	DeliveryFailures  *prometheus.CounterVec
	DeliveryDuration  *prometheus.HistogramVec
	ActiveDeviceLoops prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		ReadingsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readings_generated_total",
				Help:      "Total number of readings generated and delivered",
			},
			[]string{"sink"},
		),
		DeliveryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "delivery_failures_total",
				Help:      "Total number of readings the sink refused",
			},
			[]string{"sink"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "delivery_duration_seconds",
				Help:      "Duration of sink deliveries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
		ActiveDeviceLoops: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_device_loops",
				Help:      "Number of simulated devices currently emitting",
			},
		),
	}

	MustRegister(
		m.ReadingsGenerated,
		m.DeliveryFailures,
		m.DeliveryDuration,
		m.ActiveDeviceLoops,
	)

	return m
}
