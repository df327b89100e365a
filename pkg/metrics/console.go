package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConsoleMetrics contains Prometheus metrics for the web console.
type ConsoleMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec
	TemplateRenderTime   *prometheus.HistogramVec
	TemplateRenderErrors *prometheus.CounterVec
	GuardRedirects       *prometheus.CounterVec
	PlaceholderFallbacks *prometheus.CounterVec
	UploadOutcomes       *prometheus.CounterVec
	RoleChanges          *prometheus.CounterVec
}

// NewConsoleMetrics creates and registers console metrics.
func NewConsoleMetrics(namespace string) *ConsoleMetrics {
	m := &ConsoleMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"path"},
		),
		TemplateRenderTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_duration_seconds",
				Help:      "Duration of template rendering",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"template"},
		),
		TemplateRenderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_errors_total",
				Help:      "Total number of template rendering errors",
			},
			[]string{"template", "error_type"},
		),
		GuardRedirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "guard_redirects_total",
				Help:      "Protected requests redirected by the session guard",
			},
			[]string{"reason"}, // reason: no_token, expired, identity, role
		),
		PlaceholderFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "datasource",
				Name:      "placeholder_fallbacks_total",
				Help:      "Collections rendered from placeholder data",
			},
			[]string{"collection", "reason"}, // reason: error, empty
		),
		UploadOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "uploads_total",
				Help:      "Bulk upload attempts by outcome",
			},
			[]string{"kind", "outcome"}, // outcome: success, validation, rejected, demo, failed
		),
		RoleChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admin",
				Name:      "role_changes_total",
				Help:      "Role changes by backend outcome",
			},
			[]string{"outcome"},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HTTPResponseSize,
		m.TemplateRenderTime,
		m.TemplateRenderErrors,
		m.GuardRedirects,
		m.PlaceholderFallbacks,
		m.UploadOutcomes,
		m.RoleChanges,
	)

	return m
}
