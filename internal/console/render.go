package console

import (
	"bytes"
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"

	"carbonseed.io/console/pkg/metrics"
)

// render writes c with status. The component is rendered into a buffer
// first so that a failure can still be answered with a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, c templ.Component) {
	var buf bytes.Buffer
	//nolint:contextcheck // Context is passed to Templ's Render method
	err := trackTemplateRender(r.Context(), s.metrics, name, func(ctx context.Context) error {
		return c.Render(ctx, &buf)
	})
	if err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("failed to write response", "template", name, "error", err)
	}
}

// trackTemplateRender wraps template rendering with metrics tracking.
func trackTemplateRender(ctx context.Context, m *metrics.ConsoleMetrics, templateName string, renderFunc func(context.Context) error) error {
	// If metrics not enabled, just render
	if m == nil {
		return renderFunc(ctx)
	}

	timer := prometheus.NewTimer(m.TemplateRenderTime.WithLabelValues(templateName))
	defer timer.ObserveDuration()

	if err := renderFunc(ctx); err != nil {
		m.TemplateRenderErrors.WithLabelValues(templateName, "render_error").Inc()
		return err
	}

	return nil
}
