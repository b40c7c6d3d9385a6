package core

// scheduler.go runs background maintenance for the service.
//
// Review sessions are held in memory and opened by browsers that may never
// come back, so a janitor closes reviews that have been idle longer than the
// TTL. It runs until the context is cancelled and never fails the process.

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig holds configuration for the review janitor.
type JanitorConfig struct {
	TTL           time.Duration // idle time before a review is closed (default: 30m)
	SweepInterval time.Duration // how often to sweep (default: 5m)
}

func (c JanitorConfig) withDefaults() JanitorConfig {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// StartReviewJanitor periodically closes idle reviews. It blocks until ctx
// is cancelled, so callers run it on its own goroutine.
func (s *Service) StartReviewJanitor(ctx context.Context, cfg JanitorConfig) {
	cfg = cfg.withDefaults()
	slog.Info("review janitor started",
		"ttl", cfg.TTL.String(),
		"sweep_interval", cfg.SweepInterval.String(),
	)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("review janitor stopped")
			return
		case now := <-ticker.C:
			s.sweepReviews(now, cfg.TTL)
		}
	}
}

func (s *Service) sweepReviews(now time.Time, ttl time.Duration) {
	start := time.Now()
	closed := s.ExpireReviews(now.Add(-ttl))
	if closed == 0 {
		return
	}
	slog.Info("expired idle reviews",
		"closed", closed,
		"open", s.ReviewCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
