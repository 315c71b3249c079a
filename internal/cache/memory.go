package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process backend.
type MemoryCache struct {
	cache *gocache.Cache
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache(defaultExpirationSeconds, cleanUpIntervalSeconds int) *MemoryCache {
	defaultExpiration := time.Duration(defaultExpirationSeconds) * time.Second
	cleanUpInterval := time.Duration(cleanUpIntervalSeconds) * time.Second
	return &MemoryCache{cache: gocache.New(defaultExpiration, cleanUpInterval)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.cache.Set(key, value, ttl)
}

func (m *MemoryCache) Delete(_ context.Context, key string) {
	m.cache.Delete(key)
}

// Close is a no-op for the in-memory backend.
func (m *MemoryCache) Close() error {
	return nil
}
