package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/terra-clan/campus-gateway/internal/metrics"
	"github.com/terra-clan/campus-gateway/internal/storage"
)

// Sweeper lists and removes expired sessions
type Sweeper interface {
	Expired(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Cleaner handles periodic cleanup of expired sessions
type Cleaner struct {
	sweeper  Sweeper
	interval time.Duration
	metrics  *metrics.Metrics
}

// NewCleaner creates a new cleanup worker
func NewCleaner(sweeper Sweeper, interval time.Duration, m *metrics.Metrics) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		sweeper:  sweeper,
		interval: interval,
		metrics:  m,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup cycle and returns the number of sessions removed
func (c *Cleaner) Sweep(ctx context.Context) int {
	slog.Debug("running cleanup cycle")

	expired, err := c.sweeper.Expired(ctx)
	if err != nil {
		slog.Error("failed to get expired sessions", "error", err)
		return 0
	}

	if len(expired) == 0 {
		slog.Debug("no expired sessions found")
		return 0
	}

	slog.Info("found expired sessions", "count", len(expired))

	removed := 0
	for _, id := range expired {
		// sessions evicted by the store itself still have streams to close
		if err := c.sweeper.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			slog.Error("failed to delete expired session",
				"error", err,
				"session_id", id,
			)
			continue
		}

		removed++
		c.metrics.SessionExpired()
		slog.Info("expired session deleted", "session_id", id)
	}

	return removed
}
