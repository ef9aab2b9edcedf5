package cache

import (
	"context"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "weather:"

// MemcachedCache implements Cache on memcached. Expiry is delegated to the
// server, so PurgeExpired is a no-op there; reads still honor TTL because
// memcached never returns an expired item.
type MemcachedCache struct {
	client *memcache.Client
	ttl    TTLConfig
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, ttl TTLConfig) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client, ttl: ttl}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(endpoint Endpoint, city string) string {
	return keyPrefix + Key(endpoint, city)
}

// Get implements Cache.Get. Returns ok=false, nil on cache miss.
func (c *MemcachedCache) Get(ctx context.Context, endpoint Endpoint, city string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(endpoint, city))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item.Value, true, nil
}

// Set implements Cache.Set with the endpoint's TTL.
func (c *MemcachedCache) Set(ctx context.Context, endpoint Endpoint, city string, payload []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(endpoint, city),
		Value:      payload,
		Expiration: expirySeconds(c.ttl.TTL(endpoint)),
	})
}

// expirySeconds converts a TTL to memcached's relative-expiry seconds.
// Values above 30 days would be reinterpreted by the server as absolute
// Unix timestamps, so out-of-range TTLs fall back to 10 minutes.
func expirySeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	sec := int32(ttl.Seconds())
	if sec <= 0 || sec > maxRelativeExp {
		return 600
	}
	return sec
}

// Invalidate implements Cache.Invalidate.
func (c *MemcachedCache) Invalidate(ctx context.Context, endpoint Endpoint, city string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := c.client.Delete(c.key(endpoint, city))
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// PurgeExpired is a no-op: the server evicts expired items itself.
func (c *MemcachedCache) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
