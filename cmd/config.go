package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"carbonseed.io/console/pkg/api"
	"carbonseed.io/console/pkg/logger"
	"carbonseed.io/console/pkg/metrics"
)

// InitConfig initializes Viper configuration.
// It supports reading from config files (config.yaml) and environment variables.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory and /etc/carbonseed/
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/carbonseed/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Environment variables, e.g. CARBONSEED_CONSOLE_API_URL
	viper.SetEnvPrefix("CARBONSEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// GetLogger creates a slog.Logger based on configuration.
func GetLogger() *slog.Logger {
	return logger.New(&logger.Config{
		Output: os.Stdout,
		Format: logger.ParseFormat(viper.GetString("log.format")),
		Level:  logger.ParseLevel(viper.GetString("log.level")),
	})
}

// newAPIClient builds a backend client from the <prefix>.api.* keys.
// withMetrics registers the client metrics; it may be set once per process.
func newAPIClient(log *slog.Logger, prefix string, withMetrics bool) (*api.Client, error) {
	timeout := viper.GetDuration(prefix + ".api.timeout")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := api.NewClient(&api.ClientConfig{
		Logger:  logger.Component(log, "api"),
		BaseURL: viper.GetString(prefix + ".api.url"),
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	if withMetrics {
		client.SetMetrics(metrics.NewAPIClientMetrics(metrics.Namespace))
	}
	return client, nil
}
