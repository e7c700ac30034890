// Package worker hosts the periodic maintenance jobs.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/bonds-app/bonds/internal/repository"
)

// Cleanup sweeps expired and consumed verification records on a fixed
// interval. Not latency-critical; the stores filter stale rows out of every
// query anyway.
type Cleanup struct {
	store     repository.VerificationRepository
	interval  time.Duration
	retention time.Duration
}

func NewCleanup(store repository.VerificationRepository, interval, retention time.Duration) *Cleanup {
	return &Cleanup{
		store:     store,
		interval:  interval,
		retention: retention,
	}
}

// Run blocks until ctx is cancelled.
func (c *Cleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("verification cleanup stopped")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cleanup) sweep() {
	removed, err := c.store.CleanExpired(c.retention)
	if err != nil {
		slog.Error("verification cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("verification cleanup", "removed", removed)
	}
}
