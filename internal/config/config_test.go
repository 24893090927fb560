package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://vertical-slice-backend.vercel.app", cfg.Upstream.CatalogBaseURL)
	assert.Equal(t, "http://localhost:5000", cfg.Upstream.ApplyBaseURL)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Empty(t, cfg.Redis.Address)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 5*time.Minute, cfg.Cleanup.Interval)
	assert.Equal(t, 16, cfg.Notify.Buffer)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CATALOG_BASE_URL", "http://catalog.internal")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://catalog.internal", cfg.Upstream.CatalogBaseURL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Upstream: UpstreamConfig{CatalogBaseURL: "http://catalog", ApplyBaseURL: "http://apply", Timeout: time.Second},
			Session:  SessionConfig{TTL: time.Hour},
			Notify:   NotifyConfig{Buffer: 1},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"catalog url without scheme", func(c *Config) { c.Upstream.CatalogBaseURL = "catalog.local" }},
		{"apply url empty", func(c *Config) { c.Upstream.ApplyBaseURL = "" }},
		{"zero timeout", func(c *Config) { c.Upstream.Timeout = 0 }},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"zero buffer", func(c *Config) { c.Notify.Buffer = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	// a seed catalog does not need the remote provider
	c := valid()
	c.Catalog.SeedPath = "./seed"
	c.Upstream.CatalogBaseURL = ""
	assert.NoError(t, c.Validate())
}
