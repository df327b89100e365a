package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carbonseed.io/console/internal/audit"
	"carbonseed.io/console/internal/console"
	"carbonseed.io/console/internal/session"
	"carbonseed.io/console/pkg/logger"
	"carbonseed.io/console/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web console",
	Long: `Run the web console that:
- Signs operators in against the backend and guards every screen
- Renders dashboards, falling back to sample data when the backend has none
- Lets admins change roles and upload bulk JSON data
- Optionally audits uploads and role changes in PostgreSQL`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("http-port", 8080, "HTTP server port")
	serveCmd.Flags().String("api-url", "http://localhost:8000", "Backend REST API base URL")
	serveCmd.Flags().Duration("api-timeout", 10*time.Second, "Timeout of each backend call")
	serveCmd.Flags().String("cookie-name", session.DefaultCookieName, "Session cookie name")
	serveCmd.Flags().Duration("session-max-age", 168*time.Hour, "Session cookie lifetime")
	serveCmd.Flags().Bool("secure-cookie", false, "Only send the session cookie over HTTPS")
	serveCmd.Flags().Duration("online-threshold", 5*time.Minute, "How recently a device must have reported to count as online")
	serveCmd.Flags().Bool("demo-fallback", true, "Report a marked demo success when an upload cannot reach the backend")
	serveCmd.Flags().String("audit-dsn", "", "PostgreSQL DSN of the audit log (empty disables it)")
	serveCmd.Flags().Duration("audit-retention", 0, "Delete audit entries older than this at startup (0 keeps everything)")
	serveCmd.Flags().Bool("metrics", true, "Enable Prometheus metrics")

	_ = viper.BindPFlag("console.http.port", serveCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("console.api.url", serveCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("console.api.timeout", serveCmd.Flags().Lookup("api-timeout"))
	_ = viper.BindPFlag("console.session.cookie_name", serveCmd.Flags().Lookup("cookie-name"))
	_ = viper.BindPFlag("console.session.max_age", serveCmd.Flags().Lookup("session-max-age"))
	_ = viper.BindPFlag("console.session.secure", serveCmd.Flags().Lookup("secure-cookie"))
	_ = viper.BindPFlag("console.online_threshold", serveCmd.Flags().Lookup("online-threshold"))
	_ = viper.BindPFlag("console.ingest.demo_fallback", serveCmd.Flags().Lookup("demo-fallback"))
	_ = viper.BindPFlag("console.audit.dsn", serveCmd.Flags().Lookup("audit-dsn"))
	_ = viper.BindPFlag("console.audit.retention", serveCmd.Flags().Lookup("audit-retention"))
	_ = viper.BindPFlag("console.metrics.enabled", serveCmd.Flags().Lookup("metrics"))
}

func runServe(_ *cobra.Command, _ []string) error {
	log := GetLogger()
	log.Info("starting console service")

	withMetrics := viper.GetBool("console.metrics.enabled")

	client, err := newAPIClient(log, "console", withMetrics)
	if err != nil {
		log.Error("failed to create API client", "error", err)
		return err
	}

	recorder, closeAudit, err := audit.Open(viper.GetString("console.audit.dsn"), logger.Component(log, "audit"))
	if err != nil {
		log.Error("failed to open audit log", "error", err)
		return err
	}
	defer func() {
		if err := closeAudit(); err != nil {
			log.Error("failed to close audit log", "error", err)
		}
	}()

	if store, ok := recorder.(*audit.Store); ok {
		if retention := viper.GetDuration("console.audit.retention"); retention > 0 {
			if _, err := store.Prune(context.Background(), time.Now().Add(-retention)); err != nil {
				log.Warn("failed to prune audit log", "error", err)
			}
		}
	}

	config := &console.ServerConfig{
		Logger:  logger.Component(log, "console"),
		Backend: client,
		Session: &session.Config{
			CookieName: viper.GetString("console.session.cookie_name"),
			MaxAge:     viper.GetDuration("console.session.max_age"),
			Secure:     viper.GetBool("console.session.secure"),
		},
		Audit:           recorder,
		HTTPPort:        viper.GetInt("console.http.port"),
		OnlineThreshold: viper.GetDuration("console.online_threshold"),
		DemoFallback:    viper.GetBool("console.ingest.demo_fallback"),
	}
	if withMetrics {
		config.Metrics = metrics.NewConsoleMetrics(metrics.Namespace)
	}

	server, err := console.NewServer(config)
	if err != nil {
		log.Error("failed to create console server", "error", err)
		return err
	}

	log.Info("console server configuration",
		"http_port", config.HTTPPort,
		"api_url", client.BaseURL(),
		"online_threshold", config.OnlineThreshold,
		"demo_fallback", config.DemoFallback,
		"audit", recorder.Enabled(),
		"metrics", withMetrics,
	)

	if err := server.Run(context.Background()); err != nil {
		log.Error("console server error", "error", err)
		return err
	}

	log.Info("console server stopped")
	return nil
}
