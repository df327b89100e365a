// Package console serves the Carbonseed operations console: the public
// landing page, login, the dashboard and the admin screens.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/schema"

	"carbonseed.io/console/internal/audit"
	"carbonseed.io/console/internal/datasource"
	"carbonseed.io/console/internal/ingest"
	"carbonseed.io/console/internal/session"
	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/metrics"
)

// Backend is the part of the REST client the console calls.
type Backend interface {
	datasource.Backend
	session.IdentityFetcher
	ingest.Poster
	Login(ctx context.Context, creds api.Credentials) (*api.Token, error)
	UpdateUserRole(ctx context.Context, token string, id int, role api.Role) error
	Report(ctx context.Context, token, reportType string) (json.RawMessage, error)
}

var _ Backend = (*api.Client)(nil)

// Server represents the console HTTP server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	backend    Backend
	sessions   *session.Manager
	guard      *session.Guard
	loader     *datasource.Loader
	submitter  *ingest.Submitter
	audit      audit.Recorder
	metrics    *metrics.ConsoleMetrics
	decoder    *schema.Decoder
	now        func() time.Time
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Backend is the REST client, usually *api.Client.
	Backend Backend

	// Session configures the token cookie (optional).
	Session *session.Config

	// Audit records uploads and role changes (optional).
	Audit audit.Recorder

	// Metrics enables Prometheus instrumentation (optional).
	Metrics *metrics.ConsoleMetrics

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// HTTP server configuration
	HTTPPort int

	// OnlineThreshold is how recently a device must have reported to be
	// shown as online on the dashboard.
	OnlineThreshold time.Duration

	// PlaceholderSeed fixes the synthetic chart shown without backend data.
	PlaceholderSeed uint64

	// DemoFallback reports a marked success when an upload cannot reach
	// the backend.
	DemoFallback bool
}

// NewServer creates a new console Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}

	if cfg.HTTPPort < 0 {
		return nil, errors.New("HTTP port cannot be negative")
	}

	if cfg.OnlineThreshold < 0 {
		return nil, errors.New("online threshold cannot be negative")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	sessCfg := &session.Config{}
	if cfg.Session != nil {
		c := *cfg.Session
		sessCfg = &c
	}
	if sessCfg.Now == nil {
		sessCfg.Now = now
	}
	sessions, err := session.NewManager(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	guard, err := session.NewGuard(&session.GuardConfig{
		Logger:  cfg.Logger.With("component", "guard"),
		Manager: sessions,
		Fetcher: cfg.Backend,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session guard: %w", err)
	}

	loader, err := datasource.NewLoader(cfg.Logger.With("component", "datasource"), cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create data loader: %w", err)
	}

	submitter, err := ingest.NewSubmitter(&ingest.SubmitterConfig{
		Logger:       cfg.Logger.With("component", "ingest"),
		Poster:       cfg.Backend,
		Metrics:      cfg.Metrics,
		DemoFallback: cfg.DemoFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create submitter: %w", err)
	}

	recorder := cfg.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Server{
		logger:    cfg.Logger,
		backend:   cfg.Backend,
		sessions:  sessions,
		guard:     guard,
		loader:    loader,
		submitter: submitter,
		audit:     recorder,
		metrics:   cfg.Metrics,
		decoder:   decoder,
		now:       now,
		config:    cfg,
	}, nil
}

// Run starts the console server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting console server", "backend", backendURL(s.backend))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("console server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down console server")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.logger.Info("console server shutdown completed successfully")
	return nil
}

func backendURL(b Backend) string {
	if c, ok := b.(interface{ BaseURL() string }); ok {
		return c.BaseURL()
	}
	return ""
}
