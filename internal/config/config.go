package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the environment-driven application settings. Gateway settings
// live in a separate TOML file, see daraja_config.go.
type Config struct {
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	JWTSecret string

	DarajaConfigPath string

	NotifyWebhookURL string

	Port int
}

// Load reads configuration from environment variables with development
// defaults for everything except the database URL.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		MinioEndpoint:    envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:   envOr("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:   envOr("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:      os.Getenv("MINIO_USE_SSL") == "true",
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DarajaConfigPath: envOr("DARAJA_CONFIG", "daraja.toml"),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", dbStr, err)
		}
		cfg.RedisDB = db
	}

	portStr := envOr("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
	}
	cfg.Port = port

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
