package roster

// scheduler.go runs the service's background maintenance:
//
//  1. Expire import sessions that have not been touched for the session TTL
//  2. Refresh campus/course reference data so new sessions resolve against
//     current backend data
//
// Both loops are context-aware and stop on cancellation. A failed refresh
// is logged and the cached reference data stays in use.

import (
	"context"
	"log/slog"
	"time"
)

// SchedulerConfig holds the background job intervals. A zero interval
// disables that job.
type SchedulerConfig struct {
	SweepInterval   time.Duration
	RefreshInterval time.Duration
}

// StartScheduler runs the maintenance jobs until ctx is cancelled. It
// blocks; run it in its own goroutine.
func (s *Service) StartScheduler(ctx context.Context, cfg SchedulerConfig) {
	slog.Info("roster scheduler started",
		"sweep_interval", cfg.SweepInterval,
		"refresh_interval", cfg.RefreshInterval,
		"session_ttl", s.opts.SessionTTL,
	)

	sweep := tickerOrNil(cfg.SweepInterval)
	refresh := tickerOrNil(cfg.RefreshInterval)
	defer stopTicker(sweep)
	defer stopTicker(refresh)

	for {
		select {
		case <-ctx.Done():
			slog.Info("roster scheduler stopped")
			return
		case <-tickChan(sweep):
			s.runSweep()
		case <-tickChan(refresh):
			s.runRefresh(ctx)
		}
	}
}

func (s *Service) runSweep() {
	if n := s.ExpireSessions(); n > 0 {
		slog.Info("expired import sessions", "expired", n, "open", s.SessionCount())
	}
}

func (s *Service) runRefresh(ctx context.Context) {
	start := time.Now()
	rs, err := s.RefreshReference(ctx)
	if err != nil {
		slog.Error("reference refresh failed", "error", err)
		return
	}
	slog.Debug("reference refresh completed",
		"version", rs.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func tickerOrNil(d time.Duration) *time.Ticker {
	if d <= 0 {
		return nil
	}
	return time.NewTicker(d)
}

func stopTicker(t *time.Ticker) {
	if t != nil {
		t.Stop()
	}
}

// tickChan returns nil for a disabled ticker; receiving from nil blocks.
func tickChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
