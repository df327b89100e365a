// Package metrics holds the Prometheus collectors of the console, simulator
// and relay commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every carbonseed metric.
const Namespace = "carbonseed"

// Registry is the process-wide registry. Metric sets must be created once
// per process; a second New*Metrics call with the same namespace panics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler exposes the registry in the Prometheus text and OpenMetrics formats.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister registers collectors with the global registry.
func MustRegister(cs ...prometheus.Collector) {
	Registry.MustRegister(cs...)
}
