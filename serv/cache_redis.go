package serv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Hardcoded constants for cache behavior
const (
	cachePrefix        = "gg:cache"             // Redis key prefix
	redisTimeout       = 100 * time.Millisecond // Redis operation timeout
	redisRetryInterval = 30 * time.Second       // Retry interval when Redis unavailable
)

// RedisCache provides Redis-backed caching for deployments where
// multiple gateway processes share one cache. A Redis outage degrades
// the cache to misses instead of failing requests: operations check
// availability first and a background-free retry re-probes the
// connection at most once per retry interval.
type RedisCache struct {
	client    *redis.Client
	metrics   *CacheMetrics
	available atomic.Bool
	lastCheck atomic.Int64

	// OpenTelemetry metric instruments
	otelHitCounter       metric.Int64Counter
	otelMissCounter      metric.Int64Counter
	otelErrorCounter     metric.Int64Counter
	otelBytesCachedGauge metric.Int64UpDownCounter
	otelBytesSavedGauge  metric.Int64UpDownCounter
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// A cold Redis container can take a moment to accept connections
	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
			defer cancel()
			return client.Ping(ctx).Err()
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	rc := &RedisCache{
		client:  client,
		metrics: &CacheMetrics{},
	}
	rc.available.Store(true)

	// Initialize OpenTelemetry metrics
	meter := otel.Meter("gaqlgate.dev/cache")

	rc.otelHitCounter, _ = meter.Int64Counter("gaqlgate.cache.hits",
		metric.WithDescription("Number of cache hits"))
	rc.otelMissCounter, _ = meter.Int64Counter("gaqlgate.cache.misses",
		metric.WithDescription("Number of cache misses"))
	rc.otelErrorCounter, _ = meter.Int64Counter("gaqlgate.cache.errors",
		metric.WithDescription("Number of cache errors"))
	rc.otelBytesCachedGauge, _ = meter.Int64UpDownCounter("gaqlgate.cache.bytes_cached",
		metric.WithDescription("Total bytes stored in cache"))
	rc.otelBytesSavedGauge, _ = meter.Int64UpDownCounter("gaqlgate.cache.bytes_saved",
		metric.WithDescription("Bytes saved via compression"))

	return rc, nil
}

func (c *RedisCache) redisKey(key string) string {
	return cachePrefix + ":" + key
}

// Get retrieves a cached value. Returns (data, found)
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.isAvailable() {
		c.maybeRetryConnection()
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err == redis.Nil {
		c.recordMiss(ctx)
		return nil, false
	}
	if err != nil {
		c.handleError(err)
		c.recordError(ctx)
		c.recordMiss(ctx)
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.recordError(ctx)
		c.recordMiss(ctx)
		return nil, false
	}

	value, err := decodeEntry(entry)
	if err != nil {
		c.recordError(ctx)
		c.recordMiss(ctx)
		return nil, false
	}

	c.recordHit(ctx)
	return value, true
}

// Set stores a value with the given TTL. Expiry is Redis-native, so
// entries vanish on time even if this process never reads them again.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.isAvailable() {
		return nil
	}

	entry, saved := encodeEntry(value)
	if saved > 0 {
		c.metrics.BytesSaved.Add(saved)
		if c.otelBytesSavedGauge != nil {
			c.otelBytesSavedGauge.Add(ctx, saved)
		}
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.redisKey(key), entryJSON, ttl).Err(); err != nil {
		c.handleError(err)
		c.recordError(ctx)
		return err
	}

	c.metrics.Sets.Add(1)
	cached := int64(len(entryJSON))
	c.metrics.BytesCached.Add(cached)
	if c.otelBytesCachedGauge != nil {
		c.otelBytesCachedGauge.Add(ctx, cached)
	}
	return nil
}

// Delete removes a single entry
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.isAvailable() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	n, err := c.client.Del(ctx, c.redisKey(key)).Result()
	if err != nil {
		c.handleError(err)
		c.recordError(ctx)
		return err
	}
	c.metrics.Invalidations.Add(n)
	return nil
}

// Clear drops every entry under the cache prefix. SCAN is used instead
// of FLUSHDB so unrelated keys in a shared Redis database survive.
func (c *RedisCache) Clear(ctx context.Context) error {
	if !c.isAvailable() {
		return nil
	}

	// Allow more time than a single-key operation
	ctx, cancel := context.WithTimeout(ctx, redisTimeout*10)
	defer cancel()

	var deleted int64
	iter := c.client.Scan(ctx, 0, cachePrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.handleError(err)
			c.recordError(ctx)
			return err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		c.handleError(err)
		c.recordError(ctx)
		return err
	}

	c.metrics.Invalidations.Add(deleted)
	return nil
}

// Availability management
func (c *RedisCache) isAvailable() bool {
	return c.available.Load()
}

func (c *RedisCache) handleError(err error) {
	if err != nil {
		c.available.Store(false)
		c.lastCheck.Store(time.Now().Unix())
	}
}

func (c *RedisCache) maybeRetryConnection() {
	if c.isAvailable() {
		return
	}

	lastCheck := c.lastCheck.Load()
	if time.Now().Unix()-lastCheck < int64(redisRetryInterval.Seconds()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err == nil {
		c.available.Store(true)
	}
	c.lastCheck.Store(time.Now().Unix())
}

// Metric recording helpers (record both internal metrics and OTel metrics)
func (c *RedisCache) recordHit(ctx context.Context) {
	c.metrics.Hits.Add(1)
	if c.otelHitCounter != nil {
		c.otelHitCounter.Add(ctx, 1)
	}
}

func (c *RedisCache) recordMiss(ctx context.Context) {
	c.metrics.Misses.Add(1)
	if c.otelMissCounter != nil {
		c.otelMissCounter.Add(ctx, 1)
	}
}

func (c *RedisCache) recordError(ctx context.Context) {
	c.metrics.Errors.Add(1)
	if c.otelErrorCounter != nil {
		c.otelErrorCounter.Add(ctx, 1)
	}
}

// Metrics returns the cache metrics
func (c *RedisCache) Metrics() *CacheMetrics {
	return c.metrics
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
