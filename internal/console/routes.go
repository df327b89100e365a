package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
)

// Handler returns the console's HTTP handler with its middleware applied.
func (s *Server) Handler() http.Handler {
	return chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		s.instrument,
	).Handler(s.setupRoutes())
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Operational endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Session
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Any signed-in user
	mux.Handle("GET /dashboard", s.guard.Require("", http.HandlerFunc(s.handleDashboard)))
	mux.Handle("GET /dashboard/reports/{type}", s.guard.Require("", http.HandlerFunc(s.handleReport)))

	// Admin only
	mux.Handle("GET /admin", s.guard.Require(api.RoleAdmin, http.HandlerFunc(s.handleAdmin)))
	mux.Handle("POST /admin/users/{id}/role", s.guard.Require(api.RoleAdmin, http.HandlerFunc(s.handleRoleChange)))
	mux.Handle("POST /admin/upload/file", s.guard.Require(api.RoleAdmin, http.HandlerFunc(s.handleUploadFile)))
	mux.Handle("POST /admin/upload", s.guard.Require(api.RoleAdmin, http.HandlerFunc(s.handleUpload)))

	// Landing page (catch-all, must be last)
	mux.HandleFunc("GET /{$}", s.handleLanding)

	return mux
}
