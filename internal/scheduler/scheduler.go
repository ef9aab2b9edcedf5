package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/rmaloney/weather-proxy/internal/cache"
	"github.com/rmaloney/weather-proxy/internal/observability"
)

// PurgeScheduler periodically removes expired cache entries. The sweep is
// maintenance only; reads enforce expiry themselves, so a missed run never
// serves stale data.
type PurgeScheduler struct {
	scheduler *gocron.Scheduler
	cache     cache.Cache
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a PurgeScheduler. An interval of 0 disables it.
func New(c cache.Cache, interval time.Duration, logger *zap.Logger) *PurgeScheduler {
	return &PurgeScheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     c,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the sweep and runs the scheduler in the background.
func (s *PurgeScheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("cache purge scheduler disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := s.cache.PurgeExpired(ctx)
		if err != nil {
			s.logger.Warn("cache purge sweep failed", zap.Error(err))
			return
		}
		observability.CachePurgedTotal.Add(float64(n))
		if n > 0 {
			s.logger.Info("purged expired cache entries", zap.Int64("count", n))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("cache purge scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the scheduler. Safe to call when never started.
func (s *PurgeScheduler) Stop() {
	s.scheduler.Stop()
}
