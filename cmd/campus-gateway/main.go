package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/campus-gateway/internal/api"
	"github.com/terra-clan/campus-gateway/internal/catalog"
	"github.com/terra-clan/campus-gateway/internal/cleanup"
	"github.com/terra-clan/campus-gateway/internal/config"
	"github.com/terra-clan/campus-gateway/internal/health"
	"github.com/terra-clan/campus-gateway/internal/metrics"
	"github.com/terra-clan/campus-gateway/internal/notify"
	"github.com/terra-clan/campus-gateway/internal/session"
	"github.com/terra-clan/campus-gateway/internal/storage"
	"github.com/terra-clan/campus-gateway/migrations"
	"github.com/terra-clan/campus-gateway/pkg/client"
)

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())

	slog.Info("starting campus-gateway",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	m := metrics.New()
	registry := health.NewRegistry(3 * time.Second)

	// Upstream client for the catalog provider and the application endpoint
	upstream := client.NewClient(cfg.Upstream.CatalogBaseURL,
		client.WithApplyBaseURL(cfg.Upstream.ApplyBaseURL),
		client.WithTimeout(cfg.Upstream.Timeout),
		client.WithObserver(m.ObserveUpstream),
	)

	// Catalog source
	var provider catalog.Provider
	if cfg.Catalog.SeedPath != "" {
		static := catalog.NewStaticProvider()
		if err := static.Load(cfg.Catalog.SeedPath); err != nil {
			slog.Error("failed to load seed catalog", "path", cfg.Catalog.SeedPath, "error", err)
			os.Exit(1)
		}
		slog.Info("serving seed catalog", "path", cfg.Catalog.SeedPath, "universities", static.Len())
		provider = static
	} else {
		provider = catalog.NewRemoteProvider(upstream)
	}
	registry.Register("catalog", provider, false)

	// Session store
	var store storage.SessionStore
	if cfg.Redis.Address != "" {
		redisStore, err := storage.NewRedisStore(initCtx, storage.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to create redis session store", "error", err)
			os.Exit(1)
		}
		slog.Info("redis session store connected", "address", cfg.Redis.Address)
		store = redisStore
	} else {
		slog.Info("using in-memory session store")
		store = storage.NewMemoryStore()
	}
	defer store.Close()
	registry.Register("sessions", health.CheckerFunc(store.Ping), true)

	// Submission audit log
	var audit storage.AuditRepository = storage.NoopAudit{}
	if cfg.Database.DSN != "" {
		migrationsFS := migrationSource(cfg.Database.MigrationsDir)
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, migrationsFS); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		repo, err := storage.NewPostgresAudit(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			slog.Error("failed to create audit repository", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		audit = repo
		slog.Info("database connected successfully")

		checker, err := health.NewPostgresChecker(cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to create postgres health checker", "error", err)
			os.Exit(1)
		}
		defer checker.Close()
		registry.Register("postgres", checker, false)
	}

	// Session controller
	hub := notify.NewHub(cfg.Notify.Buffer)
	controller := session.NewController(
		session.Config{TTL: cfg.Session.TTL},
		store,
		provider,
		upstream,
		hub,
		session.WithAudit(audit),
		session.WithMetrics(m),
	)

	// Initialize cleanup worker
	cleaner := cleanup.NewCleaner(controller, cfg.Cleanup.Interval, m)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, controller, hub, registry, m)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("campus-gateway stopped")
}

// migrationSource prefers the migrations directory on disk and falls back
// to the schema embedded in the binary
func migrationSource(dir string) fs.FS {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return os.DirFS(dir)
	}
	slog.Info("migrations directory not found, using embedded migrations", "dir", dir)
	return migrations.FS
}
