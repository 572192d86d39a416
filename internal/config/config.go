package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath         string
	ServerPort     string
	LogLevel       string
	AllowedOrigins string

	// Metric names whose accumulated value may never go negative.
	NonNegativeMetrics []string

	// Optional external identity verifier. When unset the service trusts the
	// caller context injected by the upstream gateway.
	AuthServiceURL   string
	AuthServiceToken string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:             getEnv("DB_PATH", "scorekeeper.db"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		NonNegativeMetrics: splitList(getEnv("NON_NEGATIVE_METRICS", "")),
		AuthServiceURL:     getEnv("AUTH_SERVICE_URL", ""),
		AuthServiceToken:   getEnv("AUTH_SERVICE_TOKEN", ""),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("allowed_origins", cfg.AllowedOrigins).
		Strs("non_negative_metrics", cfg.NonNegativeMetrics).
		Bool("auth_service_configured", cfg.AuthServiceURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var Module = fx.Provide(Load)
