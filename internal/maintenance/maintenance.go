// Package maintenance runs periodic background housekeeping as Go tickers.
// The notification log is append-only; old entries are purged here so it
// stays bounded.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// retention is how long dispatched notifications stay queryable.
const retention = 30 * 24 * time.Hour

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration
}

// Store is the write surface cleanup needs.
type Store interface {
	PurgeOldNotifications(ctx context.Context, cutoff time.Time) (int64, error)
}

// Start launches the maintenance tickers. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, store Store, cfg Config, logger *slog.Logger) {
	if cfg.CleanupInterval <= 0 {
		logger.Info("Maintenance disabled")
		return
	}
	logger.Info("Maintenance ticker started", "cleanup", cfg.CleanupInterval)

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleanup(ctx, store, logger)
		case <-ctx.Done():
			logger.Info("Maintenance ticker stopped")
			return
		}
	}
}

// cleanup purges notifications older than the retention period.
func cleanup(ctx context.Context, store Store, logger *slog.Logger) {
	purged, err := store.PurgeOldNotifications(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.Warn("Cleanup: failed to purge old notifications", "error", err)
		return
	}
	if purged > 0 {
		logger.Info("Cleanup: purged old notifications", "count", purged)
	}
}
