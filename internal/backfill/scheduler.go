package backfill

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler triggers periodic backfill runs. A run also fires immediately on
// start so a fresh deployment doesn't wait a full interval for its first fill.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(service *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, executing a full backfill pass on start
// and then on every tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Backfill scheduler started", "interval", s.interval)

	s.service.RunAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Backfill scheduler stopped")
			return
		case <-ticker.C:
			s.service.RunAll(ctx)
		}
	}
}
