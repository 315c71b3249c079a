package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"journey-risk-api-server/internal/metrics"
)

// Cache stores JSON-encoded values. Backends are go-cache (in process) and Redis.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Close() error
}

// GetOrSet returns the cached value for key, or calls loader and caches its result.
// Loader errors are returned and nothing is cached.
func GetOrSet[T any](ctx context.Context, c Cache, m *metrics.Registry, key string, ttl time.Duration, loader func() (T, error)) (T, error) {
	pattern := keyPattern(key)
	if c != nil {
		if raw, ok := c.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				m.CacheHit(pattern)
				return v, nil
			}
		}
	}
	m.CacheMiss(pattern)

	v, err := loader()
	if err != nil {
		return v, err
	}
	if c != nil {
		if raw, err := json.Marshal(v); err == nil {
			c.Set(ctx, key, raw, ttl)
		}
	}
	return v, nil
}

func keyPattern(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
