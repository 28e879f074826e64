// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/annex/internal/annostore"
)

type Config struct {
	Port    string
	BaseURL string
	DBPath  string

	PaperlessURL   string
	PaperlessToken string

	StorageBackend string
	SerializerName string
	HeaderTemplate string // path to a custom note header template, optional

	LinkFieldName string
	SyncEnabled   bool
	SyncInterval  time.Duration

	SecretsPassphrase string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present but never overrides real env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("ANNEX_PORT", "8080"),
		DBPath:            getEnv("ANNEX_DB_PATH", "annex.db"),
		PaperlessURL:      os.Getenv("PAPERLESS_URL"),
		PaperlessToken:    os.Getenv("PAPERLESS_TOKEN"),
		StorageBackend:    getEnv("ANNEX_STORAGE_BACKEND", annostore.BackendNotes),
		SerializerName:    getEnv("ANNEX_SERIALIZER", "85gj"),
		HeaderTemplate:    os.Getenv("ANNEX_HEADER_TEMPLATE"),
		LinkFieldName:     getEnv("ANNEX_LINK_FIELD", "Annex Link"),
		SecretsPassphrase: os.Getenv("ANNEX_SECRETS_PASSPHRASE"),
		LogLevel:          getEnv("ANNEX_LOG_LEVEL", "info"),
		LogFormat:         getEnv("ANNEX_LOG_FORMAT", "text"),
	}
	cfg.BaseURL = getEnv("ANNEX_BASE_URL", "http://localhost:"+cfg.Port)

	if cfg.PaperlessURL == "" {
		return nil, fmt.Errorf("PAPERLESS_URL is required")
	}
	if cfg.PaperlessToken == "" {
		return nil, fmt.Errorf("PAPERLESS_TOKEN is required")
	}

	enabled, err := strconv.ParseBool(getEnv("ANNEX_SYNC_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANNEX_SYNC_ENABLED: %w", err)
	}
	cfg.SyncEnabled = enabled

	interval, err := time.ParseDuration(getEnv("ANNEX_SYNC_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANNEX_SYNC_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ANNEX_SYNC_INTERVAL must be positive")
	}
	cfg.SyncInterval = interval

	switch cfg.StorageBackend {
	case annostore.BackendNotes, annostore.BackendDatabase:
	default:
		return nil, fmt.Errorf("unknown ANNEX_STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
