package serv

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Default memory cache size (number of entries)
const defaultMemoryCacheSize = 10000

// memoryCacheEntry wraps a cache entry with expiration info
type memoryCacheEntry struct {
	data     []byte
	storedAt time.Time
	ttl      time.Duration // zero means no expiry
}

func (e *memoryCacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) >= e.ttl
}

// MemoryCache provides in-memory LRU caching with per-entry TTLs.
// Expiry is lazy: entries past their TTL are dropped on the next Get.
type MemoryCache struct {
	cache   *lru.Cache[string, *memoryCacheEntry]
	metrics *CacheMetrics

	// nowFn is replaceable in tests to control expiry
	nowFn func() time.Time

	// OpenTelemetry metric instruments
	otelHitCounter       metric.Int64Counter
	otelMissCounter      metric.Int64Counter
	otelEvictionCounter  metric.Int64Counter
	otelBytesCachedGauge metric.Int64UpDownCounter
}

// NewMemoryCache creates a new in-memory LRU cache
func NewMemoryCache(maxEntries int) (*MemoryCache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryCacheSize
	}

	mc := &MemoryCache{
		metrics: &CacheMetrics{},
		nowFn:   time.Now,
	}

	cache, err := lru.NewWithEvict[string, *memoryCacheEntry](maxEntries,
		func(key string, entry *memoryCacheEntry) {
			mc.metrics.Evictions.Add(1)
			mc.metrics.BytesCached.Add(-int64(len(entry.data)))
			if mc.otelEvictionCounter != nil {
				mc.otelEvictionCounter.Add(context.Background(), 1)
			}
		})
	if err != nil {
		return nil, err
	}
	mc.cache = cache

	// Initialize OpenTelemetry metrics
	meter := otel.Meter("gaqlgate.dev/cache")

	mc.otelHitCounter, _ = meter.Int64Counter("gaqlgate.cache.hits",
		metric.WithDescription("Number of cache hits"))
	mc.otelMissCounter, _ = meter.Int64Counter("gaqlgate.cache.misses",
		metric.WithDescription("Number of cache misses"))
	mc.otelEvictionCounter, _ = meter.Int64Counter("gaqlgate.cache.evictions",
		metric.WithDescription("Number of cache evictions"))
	mc.otelBytesCachedGauge, _ = meter.Int64UpDownCounter("gaqlgate.cache.bytes_cached",
		metric.WithDescription("Total bytes stored in cache"))

	return mc, nil
}

// Get retrieves a cached value. Returns (data, found)
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	entry, ok := mc.cache.Get(key)
	if !ok {
		mc.recordMiss(ctx)
		return nil, false
	}

	if entry.expired(mc.nowFn()) {
		mc.cache.Remove(key)
		mc.recordMiss(ctx)
		return nil, false
	}

	mc.recordHit(ctx)
	return entry.data, true
}

// Set stores a value with the given TTL
func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	// Overwriting a key does not trigger the eviction callback, so the
	// old entry's size has to come off the books here.
	if prev, ok := mc.cache.Peek(key); ok {
		replaced := int64(len(prev.data))
		mc.metrics.BytesCached.Add(-replaced)
		if mc.otelBytesCachedGauge != nil {
			mc.otelBytesCachedGauge.Add(ctx, -replaced)
		}
	}

	mc.cache.Add(key, &memoryCacheEntry{
		data:     data,
		storedAt: mc.nowFn(),
		ttl:      ttl,
	})

	mc.metrics.Sets.Add(1)
	cached := int64(len(data))
	mc.metrics.BytesCached.Add(cached)
	if mc.otelBytesCachedGauge != nil {
		mc.otelBytesCachedGauge.Add(ctx, cached)
	}
	return nil
}

// Delete removes a single entry
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	if mc.cache.Remove(key) {
		mc.metrics.Invalidations.Add(1)
	}
	return nil
}

// Clear drops every entry
func (mc *MemoryCache) Clear(ctx context.Context) error {
	n := int64(mc.cache.Len())
	mc.cache.Purge()
	mc.metrics.Invalidations.Add(n)
	return nil
}

// Keys returns all cached keys, least recently used first
func (mc *MemoryCache) Keys() []string {
	return mc.cache.Keys()
}

// Metric recording helpers (record both internal metrics and OTel metrics)
func (mc *MemoryCache) recordHit(ctx context.Context) {
	mc.metrics.Hits.Add(1)
	if mc.otelHitCounter != nil {
		mc.otelHitCounter.Add(ctx, 1)
	}
}

func (mc *MemoryCache) recordMiss(ctx context.Context) {
	mc.metrics.Misses.Add(1)
	if mc.otelMissCounter != nil {
		mc.otelMissCounter.Add(ctx, 1)
	}
}

// Metrics returns the cache metrics
func (mc *MemoryCache) Metrics() *CacheMetrics {
	return mc.metrics
}

// Close purges the cache
func (mc *MemoryCache) Close() error {
	mc.cache.Purge()
	return nil
}
