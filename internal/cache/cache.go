package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rodrigomiquilino/wwm-review/pkg/log"
)

// Backend is the persisted key/value store behind the cache. Entries carry
// their write time; the cache layer decides freshness.
type Backend interface {
	CacheGet(key string) (data string, createdAt time.Time, ok bool, err error)
	CacheSet(key, data string) error
	CacheDelete(key string) error
}

// Cache is a typed TTL cache over a persisted backend. Reads through it are
// best-effort: backend failures degrade to a miss, never to an error the
// caller has to handle.
type Cache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

func New(backend Backend, ttl time.Duration) *Cache {
	return &Cache{backend: backend, ttl: ttl, now: time.Now}
}

// WithTTL returns a view of the same backend with a different TTL, for
// concerns that need shorter freshness windows than the default.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	return &Cache{backend: c.backend, ttl: ttl, now: c.now}
}

// Invalidate drops the entry for key.
func (c *Cache) Invalidate(key string) {
	if err := c.backend.CacheDelete(key); err != nil {
		log.Warn("cache: invalidate %s: %v", key, err)
	}
}

// Get returns the cached value for key if it is fresher than the TTL.
func Get[T any](c *Cache, key string) (T, bool) {
	return lookup[T](c, key, false)
}

// GetStale returns the cached value for key regardless of age. Used as the
// degraded-read fallback when the live fetch fails.
func GetStale[T any](c *Cache, key string) (T, bool) {
	return lookup[T](c, key, true)
}

// Set stores value under key, stamped now. Failures are logged and dropped.
func Set[T any](c *Cache, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn("cache: encode %s: %v", key, err)
		return
	}
	if err := c.backend.CacheSet(key, string(data)); err != nil {
		log.Warn("cache: store %s: %v", key, err)
	}
}

// Fetch is the cache-first read path: a fresh cached value short-circuits,
// otherwise fn runs and its result is cached. When fn fails, a stale cached
// value is served instead of the error, if one exists.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	if value, ok := Get[T](c, key); ok {
		return value, nil
	}

	value, err := fn(ctx)
	if err != nil {
		if stale, ok := GetStale[T](c, key); ok {
			log.Warn("cache: serving stale %s after fetch failure: %v", key, err)
			return stale, nil
		}
		var zero T
		return zero, err
	}

	Set(c, key, value)
	return value, nil
}

func lookup[T any](c *Cache, key string, allowStale bool) (T, bool) {
	var zero T
	data, createdAt, ok, err := c.backend.CacheGet(key)
	if err != nil {
		log.Warn("cache: read %s: %v", key, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	if !allowStale && c.now().Sub(createdAt) >= c.ttl {
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		log.Warn("cache: decode %s: %v", key, err)
		return zero, false
	}
	return value, true
}
