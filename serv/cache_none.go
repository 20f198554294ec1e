package serv

import (
	"context"
	"time"
)

// NullCache is a no-op backend for deployments that disable caching.
// Every Get is a miss; Set and the invalidation operations succeed
// without storing anything.
type NullCache struct {
	metrics CacheMetrics
}

// NewNullCache creates a new no-op cache
func NewNullCache() *NullCache {
	return &NullCache{}
}

func (nc *NullCache) Get(ctx context.Context, key string) ([]byte, bool) {
	nc.metrics.Misses.Add(1)
	return nil, false
}

func (nc *NullCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (nc *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (nc *NullCache) Clear(ctx context.Context) error {
	return nil
}

// Metrics returns the cache metrics
func (nc *NullCache) Metrics() *CacheMetrics {
	return &nc.metrics
}

// Close is a no-op
func (nc *NullCache) Close() error {
	return nil
}
