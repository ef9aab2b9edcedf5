package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/rmaloney/weather-proxy/internal/observability"
)

// BestEffort wraps a Cache so that backend failures never propagate to the
// caller: reads degrade to misses, writes and invalidations to no-ops,
// each logged at warn level. Caching is a performance optimization, never
// a correctness dependency, and this wrapper is the single place that
// policy lives.
type BestEffort struct {
	inner  Cache
	logger *zap.Logger
}

// NewBestEffort wraps inner with the fail-open policy.
func NewBestEffort(inner Cache, logger *zap.Logger) *BestEffort {
	return &BestEffort{inner: inner, logger: logger}
}

// Get returns a miss when the underlying read fails.
func (b *BestEffort) Get(ctx context.Context, endpoint Endpoint, city string) ([]byte, bool, error) {
	payload, ok, err := b.inner.Get(ctx, endpoint, city)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		b.logger.Warn("cache read error", zap.String("key", Key(endpoint, city)), zap.Error(err))
		return nil, false, nil
	}
	return payload, ok, nil
}

// Set swallows write failures.
func (b *BestEffort) Set(ctx context.Context, endpoint Endpoint, city string, payload []byte) error {
	if err := b.inner.Set(ctx, endpoint, city, payload); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		b.logger.Warn("cache write error", zap.String("key", Key(endpoint, city)), zap.Error(err))
	}
	return nil
}

// Invalidate swallows delete failures.
func (b *BestEffort) Invalidate(ctx context.Context, endpoint Endpoint, city string) error {
	if err := b.inner.Invalidate(ctx, endpoint, city); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("invalidate").Inc()
		b.logger.Warn("cache invalidation error", zap.String("key", Key(endpoint, city)), zap.Error(err))
	}
	return nil
}

// PurgeExpired reports 0 when the sweep fails.
func (b *BestEffort) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := b.inner.PurgeExpired(ctx)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("purge").Inc()
		b.logger.Warn("cache purge error", zap.Error(err))
		return 0, nil
	}
	return n, nil
}
