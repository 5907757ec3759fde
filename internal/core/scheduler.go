package core

// scheduler.go runs background maintenance.
//
// The retention scheduler prunes job history older than the configured
// number of days. It runs once on start and then on every tick, logs its
// progress, and never stops the application when a run fails.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the history retention scheduler.
type RetentionConfig struct {
	RetentionDays int           // Days to keep job history (default: 30)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler prunes old history entries until ctx is cancelled.
// It blocks; run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	// Run immediately on startup
	s.runRetention(ctx, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			s.runRetention(ctx, cfg, now)
		}
	}
}

// runRetention performs one prune cycle and returns the number of removed entries.
func (s *Service) runRetention(ctx context.Context, cfg RetentionConfig, now time.Time) int64 {
	start := time.Now()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	removed, err := s.opts.History.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return 0
	}

	slog.Info("pruned job history",
		"entries_removed", removed,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return removed
}
