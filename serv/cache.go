package serv

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"sync/atomic"
	"time"
)

// Cache defines the interface for response caching backends.
// MemoryCache, RedisCache and NullCache implement this interface.
type Cache interface {
	// Get retrieves a cached value. Returns (data, found). Backend
	// failures surface as a miss, never as an error.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL. A zero TTL means the
	// entry never expires before eviction.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single entry. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry held by the backend.
	Clear(ctx context.Context) error

	// Metrics returns the cache metrics
	Metrics() *CacheMetrics

	// Close releases resources
	Close() error
}

// keyLister is implemented by backends that can enumerate their keys.
// The cache manager uses it for prefix invalidation; backends without
// it only support whole-cache clears.
type keyLister interface {
	Keys() []string
}

// Only compress values larger than 1KB
const compressionThreshold = 1024

// cacheEntry is the stored representation of a value. Large values
// are gzipped before storage; the flag tells Get to decompress.
type cacheEntry struct {
	Data         []byte `json:"d"`
	Compressed   bool   `json:"c,omitempty"`
	OriginalSize int    `json:"o,omitempty"`
}

// Compression helpers using gzip
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// encodeEntry wraps value for storage, compressing when beneficial.
// It reports the bytes saved by compression.
func encodeEntry(value []byte) (cacheEntry, int64) {
	entry := cacheEntry{Data: value, OriginalSize: len(value)}

	if len(value) > compressionThreshold {
		if compData, err := compress(value); err == nil && len(compData) < len(value) {
			entry.Data = compData
			entry.Compressed = true
			return entry, int64(len(value) - len(compData))
		}
	}
	return entry, 0
}

// decodeEntry unwraps a stored entry back into the original value.
func decodeEntry(entry cacheEntry) ([]byte, error) {
	if !entry.Compressed {
		return entry.Data, nil
	}
	return decompress(entry.Data)
}

// CacheMetrics tracks cache performance
type CacheMetrics struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	Sets          atomic.Int64
	Invalidations atomic.Int64
	Evictions     atomic.Int64
	BytesCached   atomic.Int64
	BytesSaved    atomic.Int64 // Compression savings
	Errors        atomic.Int64
}

// Snapshot returns a point-in-time snapshot of metrics
func (m *CacheMetrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"hits":          m.Hits.Load(),
		"misses":        m.Misses.Load(),
		"sets":          m.Sets.Load(),
		"invalidations": m.Invalidations.Load(),
		"evictions":     m.Evictions.Load(),
		"bytes_cached":  m.BytesCached.Load(),
		"bytes_saved":   m.BytesSaved.Load(),
		"errors":        m.Errors.Load(),
	}
}

// HitRate returns the cache hit rate (0.0 to 1.0)
func (m *CacheMetrics) HitRate() float64 {
	hits := m.Hits.Load()
	total := hits + m.Misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
