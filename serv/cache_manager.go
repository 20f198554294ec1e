package serv

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adtools/gaqlgate/core"
)

// CacheManager layers key construction, JSON serialization and TTL
// policy on top of a raw Cache backend. All cached values pass through
// it, so the backend only ever sees opaque bytes under namespaced keys.
type CacheManager struct {
	backend      Cache
	keys         *core.KeyBuilder
	ttlOverrides map[core.ResourceType]time.Duration
	group        singleflight.Group
	log          *zap.SugaredLogger
}

// NewCacheManager creates a manager over backend. ttlOverrides replace
// the built-in per-resource TTLs for the resource types it names;
// other types keep their defaults.
func NewCacheManager(
	backend Cache,
	ttlOverrides map[core.ResourceType]time.Duration,
	log *zap.SugaredLogger,
) *CacheManager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CacheManager{
		backend:      backend,
		keys:         core.NewKeyBuilder(),
		ttlOverrides: ttlOverrides,
		log:          log,
	}
}

// BuildKey constructs the cache key for one logical read.
func (m *CacheManager) BuildKey(
	tenant string,
	rt core.ResourceType,
	operation string,
	params map[string]any,
) (string, error) {
	return m.keys.Build(tenant, rt, operation, params)
}

// TTLFor resolves the effective TTL for a resource type: an explicit
// override wins, otherwise the built-in default for the type.
func (m *CacheManager) TTLFor(rt core.ResourceType) time.Duration {
	if ttl, ok := m.ttlOverrides[rt]; ok {
		return ttl
	}
	return rt.TTL()
}

// Get looks up key and decodes the cached JSON into out. It returns
// false on a miss or when the cached bytes no longer decode; a corrupt
// entry is deleted so the next read repopulates it.
func (m *CacheManager) Get(ctx context.Context, key string, out any) bool {
	data, found := m.backend.Get(ctx, key)
	if !found {
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		m.log.Warnw("dropping undecodable cache entry", "key", key, "error", err)
		if derr := m.backend.Delete(ctx, key); derr != nil {
			m.log.Debugw("cache delete failed", "key", key, "error", derr)
		}
		return false
	}
	return true
}

// Set serializes value and stores it under key. A zero ttl resolves
// to the effective TTL for rt. Backend write failures are logged and
// swallowed: a broken cache must not fail the read path.
func (m *CacheManager) Set(
	ctx context.Context,
	key string,
	value any,
	rt core.ResourceType,
	ttl time.Duration,
) {
	data, err := json.Marshal(value)
	if err != nil {
		m.log.Warnw("cache serialization failed", "key", key, "error", err)
		return
	}

	if ttl == 0 {
		ttl = m.TTLFor(rt)
	}

	if err := m.backend.Set(ctx, key, data, ttl); err != nil {
		m.log.Warnw("cache write failed", "key", key, "error", err)
	}
}

// Invalidate removes all entries under the tenant/resource/operation
// prefix. Narrower scopes need the later arguments: passing an empty
// resource type drops everything for the tenant. It returns the number
// of entries removed.
//
// Only backends that can enumerate keys support prefix invalidation;
// for others this logs a warning and removes nothing. Use Clear for a
// full wipe on those backends.
func (m *CacheManager) Invalidate(
	ctx context.Context,
	tenant string,
	rt core.ResourceType,
	operation string,
) int {
	lister, ok := m.backend.(keyLister)
	if !ok {
		m.log.Warnw("cache backend does not support prefix invalidation",
			"tenant", tenant, "resource", string(rt))
		return 0
	}

	prefix := m.keys.KeyPrefix(tenant, rt, operation)
	removed := 0
	for _, key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := m.backend.Delete(ctx, key); err != nil {
			m.log.Warnw("cache delete failed", "key", key, "error", err)
			continue
		}
		removed++
	}

	m.log.Infow("cache invalidated", "prefix", prefix, "removed", removed)
	return removed
}

// Clear drops every cached entry.
func (m *CacheManager) Clear(ctx context.Context) error {
	return m.backend.Clear(ctx)
}

// Metrics returns the backend's cache metrics.
func (m *CacheManager) Metrics() *CacheMetrics {
	return m.backend.Metrics()
}

// Close releases the backend.
func (m *CacheManager) Close() error {
	return m.backend.Close()
}

// Cached wraps a fetch in the read-through pattern: return the cached
// value when present, otherwise call fetch once and cache its result
// under the effective TTL for rt. Concurrent misses on the same key
// share a single fetch; the reported bool is true on a cache hit.
//
// This is a function rather than a method so the cached type can be a
// type parameter.
func Cached[T any](
	ctx context.Context,
	m *CacheManager,
	key string,
	rt core.ResourceType,
	fetch func(ctx context.Context) (T, error),
) (T, bool, error) {
	var out T
	if m.Get(ctx, key, &out) {
		return out, true, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// Re-check: another flight may have populated the key while
		// this one queued.
		var cached T
		if m.Get(ctx, key, &cached) {
			return cached, nil
		}

		fetched, err := fetch(ctx)
		if err != nil {
			return fetched, err
		}
		m.Set(ctx, key, fetched, rt, 0)
		return fetched, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}
