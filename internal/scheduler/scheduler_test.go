package scheduler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rmaloney/weather-proxy/internal/cache"
)

type countingCache struct {
	purged chan struct{}
}

func (c *countingCache) Get(ctx context.Context, endpoint cache.Endpoint, city string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *countingCache) Set(ctx context.Context, endpoint cache.Endpoint, city string, payload []byte) error {
	return nil
}

func (c *countingCache) Invalidate(ctx context.Context, endpoint cache.Endpoint, city string) error {
	return nil
}

func (c *countingCache) PurgeExpired(ctx context.Context) (int64, error) {
	select {
	case c.purged <- struct{}{}:
	default:
	}
	return 3, nil
}

func TestStart_RunsSweep(t *testing.T) {
	c := &countingCache{purged: make(chan struct{}, 1)}
	s := New(c, 50*time.Millisecond, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	select {
	case <-c.purged:
	case <-time.After(5 * time.Second):
		t.Fatal("purge sweep never ran")
	}
}

func TestStart_ZeroIntervalDisabled(t *testing.T) {
	c := &countingCache{purged: make(chan struct{}, 1)}
	s := New(c, 0, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()

	select {
	case <-c.purged:
		t.Fatal("sweep ran with scheduler disabled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStop_SafeWhenNeverStarted(t *testing.T) {
	s := New(&countingCache{purged: make(chan struct{}, 1)}, time.Hour, zap.NewNop())
	s.Stop()
}
