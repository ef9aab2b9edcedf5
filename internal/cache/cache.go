package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rmaloney/weather-proxy/internal/store"
)

// Endpoint identifies which weather operation a cache entry belongs to.
type Endpoint string

const (
	EndpointCurrent  Endpoint = "current"
	EndpointForecast Endpoint = "forecast"
)

// Key derives the cache key for an endpoint and city. City is lowercased
// and trimmed here so lookups are case-insensitive by construction; the
// store itself never compares case.
func Key(endpoint Endpoint, city string) string {
	return string(endpoint) + ":" + NormalizeCity(city)
}

// NormalizeCity lowercases and trims a city name for keying and storage.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Cache stores serialized weather documents with per-endpoint TTL expiry.
// Payloads are opaque to the cache. Get returns ok=false for both missing
// and expired entries; expiry is enforced at read time, not by deletion.
type Cache interface {
	Get(ctx context.Context, endpoint Endpoint, city string) ([]byte, bool, error)
	Set(ctx context.Context, endpoint Endpoint, city string, payload []byte) error
	Invalidate(ctx context.Context, endpoint Endpoint, city string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// TTLConfig holds the per-endpoint time-to-live. Forecast data changes
// less often than current conditions, so it carries the longer TTL.
type TTLConfig struct {
	Current  time.Duration
	Forecast time.Duration
}

// TTL returns the configured duration for the endpoint.
func (c TTLConfig) TTL(endpoint Endpoint) time.Duration {
	if endpoint == EndpointForecast {
		return c.Forecast
	}
	return c.Current
}

// SQLiteCache implements Cache on the weather_cache table. A single
// ON CONFLICT upsert keeps concurrent writers for the same key from
// racing into a torn entry.
type SQLiteCache struct {
	db  *sql.DB
	ttl TTLConfig
}

// NewSQLiteCache wraps an opened database handle with TTL policy.
func NewSQLiteCache(db *sql.DB, ttl TTLConfig) *SQLiteCache {
	return &SQLiteCache{db: db, ttl: ttl}
}

// Get returns the payload for the derived key if present and not expired.
// The expires_at predicate runs in the query, so an expired row is inert
// even when no purge has removed it yet.
func (c *SQLiteCache) Get(ctx context.Context, endpoint Endpoint, city string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT data FROM weather_cache WHERE cache_key = ? AND expires_at > ?",
		Key(endpoint, city), time.Now().Unix(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return data, true, nil
}

// Set upserts the entry for the derived key, replacing payload, created_at
// and expires_at in one statement.
func (c *SQLiteCache) Set(ctx context.Context, endpoint Endpoint, city string, payload []byte) error {
	now := time.Now().Unix()
	expiresAt := now + int64(c.ttl.TTL(endpoint).Seconds())
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO weather_cache (cache_key, endpoint, city, data, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data       = excluded.data,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		Key(endpoint, city), string(endpoint), NormalizeCity(city), payload, now, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate deletes the entry for the exact derived key only. Entries for
// the same city under the other endpoint are untouched.
func (c *SQLiteCache) Invalidate(ctx context.Context, endpoint Endpoint, city string) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM weather_cache WHERE cache_key = ?", Key(endpoint, city))
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// PurgeExpired removes all rows already past expiry and returns the count.
// Live entries are never touched, so the sweep commutes with concurrent
// reads and writes.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	return store.PurgeExpiredAt(c.db, time.Now())
}
