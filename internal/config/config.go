package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for campus-gateway
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Catalog  CatalogConfig
	Session  SessionConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Cleanup  CleanupConfig
	Notify   NotifyConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// UpstreamConfig holds the catalog provider and application endpoint
type UpstreamConfig struct {
	CatalogBaseURL string
	ApplyBaseURL   string
	Timeout        time.Duration
}

// CatalogConfig selects the catalog source. A non-empty SeedPath serves
// the YAML seed catalog instead of the remote provider.
type CatalogConfig struct {
	SeedPath string
}

// SessionConfig holds session lifetime configuration
type SessionConfig struct {
	TTL time.Duration
}

// RedisConfig holds Redis configuration. An empty Address keeps sessions in memory.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN disables the audit log.
type DatabaseConfig struct {
	DSN           string
	MigrationsDir string
	MaxOpenConns  int
	MaxIdleConns  int
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval time.Duration
}

// NotifyConfig holds notification hub configuration
type NotifyConfig struct {
	Buffer int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables, reading .env first when present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Upstream: UpstreamConfig{
			CatalogBaseURL: getEnv("CATALOG_BASE_URL", "https://vertical-slice-backend.vercel.app"),
			ApplyBaseURL:   getEnv("APPLY_BASE_URL", "http://localhost:5000"),
			Timeout:        getEnvAsDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		},
		Catalog: CatalogConfig{
			SeedPath: getEnv("CATALOG_SEED_PATH", ""),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			MaxOpenConns:  getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:  getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 1),
		},
		Cleanup: CleanupConfig{
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
		},
		Notify: NotifyConfig{
			Buffer: getEnvAsInt("NOTIFY_BUFFER", 16),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Catalog.SeedPath == "" {
		if err := validateURL("catalog base URL", c.Upstream.CatalogBaseURL); err != nil {
			return err
		}
	}
	if err := validateURL("apply base URL", c.Upstream.ApplyBaseURL); err != nil {
		return err
	}

	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive: %s", c.Upstream.Timeout)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive: %s", c.Session.TTL)
	}

	if c.Notify.Buffer < 1 {
		return fmt.Errorf("notify buffer must be at least 1: %d", c.Notify.Buffer)
	}

	return nil
}

// SlogLevel maps the configured level name to a slog level
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
