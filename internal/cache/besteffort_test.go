package cache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// failingCache errors on every operation.
type failingCache struct{}

var errBackend = errors.New("backend down")

func (f *failingCache) Get(ctx context.Context, endpoint Endpoint, city string) ([]byte, bool, error) {
	return nil, false, errBackend
}

func (f *failingCache) Set(ctx context.Context, endpoint Endpoint, city string, payload []byte) error {
	return errBackend
}

func (f *failingCache) Invalidate(ctx context.Context, endpoint Endpoint, city string) error {
	return errBackend
}

func (f *failingCache) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, errBackend
}

func TestBestEffort_GetDegradesToMiss(t *testing.T) {
	b := NewBestEffort(&failingCache{}, zap.NewNop())

	payload, ok, err := b.Get(context.Background(), EndpointCurrent, "berlin")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil (fail-open)", err)
	}
	if ok {
		t.Error("Get() ok = true, want miss on backend failure")
	}
	if payload != nil {
		t.Errorf("Get() payload = %v, want nil", payload)
	}
}

func TestBestEffort_SetSwallowsError(t *testing.T) {
	b := NewBestEffort(&failingCache{}, zap.NewNop())

	if err := b.Set(context.Background(), EndpointCurrent, "berlin", []byte(`{}`)); err != nil {
		t.Fatalf("Set() error = %v, want nil (fail-open)", err)
	}
}

func TestBestEffort_InvalidateSwallowsError(t *testing.T) {
	b := NewBestEffort(&failingCache{}, zap.NewNop())

	if err := b.Invalidate(context.Background(), EndpointCurrent, "berlin"); err != nil {
		t.Fatalf("Invalidate() error = %v, want nil (fail-open)", err)
	}
}

func TestBestEffort_PurgeReportsZeroOnError(t *testing.T) {
	b := NewBestEffort(&failingCache{}, zap.NewNop())

	n, err := b.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v, want nil (fail-open)", err)
	}
	if n != 0 {
		t.Errorf("PurgeExpired() = %d, want 0", n)
	}
}

func TestBestEffort_PassthroughOnSuccess(t *testing.T) {
	inner := &fakeCache{data: map[string][]byte{
		Key(EndpointCurrent, "berlin"): []byte(`{"ok":true}`),
	}}
	b := NewBestEffort(inner, zap.NewNop())

	payload, ok, err := b.Get(context.Background(), EndpointCurrent, "Berlin")
	if err != nil || !ok {
		t.Fatalf("Get() = (%v, %v), want hit", ok, err)
	}
	if string(payload) != `{"ok":true}` {
		t.Errorf("Get() payload = %s", payload)
	}
}

// fakeCache is a map-backed Cache for wrapper tests.
type fakeCache struct {
	data map[string][]byte
}

func (f *fakeCache) Get(ctx context.Context, endpoint Endpoint, city string) ([]byte, bool, error) {
	v, ok := f.data[Key(endpoint, city)]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, endpoint Endpoint, city string, payload []byte) error {
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[Key(endpoint, city)] = payload
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, endpoint Endpoint, city string) error {
	delete(f.data, Key(endpoint, city))
	return nil
}

func (f *fakeCache) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
