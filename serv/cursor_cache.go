package serv

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CursorCache maps short numeric IDs to opaque page tokens so paged
// results can be resumed with "fetch more" calls. The remote page
// tokens are long and caller-hostile; a small integer is something a
// tool caller can echo back reliably.
type CursorCache interface {
	// Set stores a page token and returns a short numeric ID
	Set(ctx context.Context, token string) (uint64, error)

	// Get retrieves a page token by its numeric ID
	Get(ctx context.Context, id uint64) (string, error)

	// Close releases resources
	Close() error
}

// Redis key prefixes for cursor cache
const (
	cursorPrefix       = "gg:cursor:"
	cursorIDKey        = cursorPrefix + "id:"  // id:<id> -> page token
	cursorRevKey       = cursorPrefix + "rev:" // rev:<hash> -> id (deduplication)
	cursorNextIDKey    = cursorPrefix + "next" // atomic counter for ID generation
	cursorRedisTimeout = 100 * time.Millisecond
)

// RedisCursorCache keeps cursor IDs in Redis so any gateway process
// behind a shared cache can resume a stream started by another.
type RedisCursorCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCursorCache creates a new Redis cursor cache
func NewRedisCursorCache(redisURL string, ttl time.Duration) (*RedisCursorCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cursorRedisTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCursorCache{client: client, ttl: ttl}, nil
}

// Set stores a page token and returns a short numeric ID. Storing the
// same token twice returns the first ID and refreshes its TTL.
func (c *RedisCursorCache) Set(ctx context.Context, token string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, cursorRedisTimeout)
	defer cancel()

	hash := hashToken(token)
	revKey := cursorRevKey + hash

	existingID, err := c.client.Get(ctx, revKey).Uint64()
	if err == nil {
		pipe := c.client.Pipeline()
		pipe.Expire(ctx, revKey, c.ttl)
		pipe.Expire(ctx, cursorIDKey+fmt.Sprintf("%d", existingID), c.ttl)
		pipe.Exec(ctx)
		return existingID, nil
	}

	id, err := c.client.Incr(ctx, cursorNextIDKey).Uint64()
	if err != nil {
		return 0, fmt.Errorf("failed to generate cursor ID: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, cursorIDKey+fmt.Sprintf("%d", id), token, c.ttl)
	pipe.Set(ctx, revKey, id, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to store cursor: %w", err)
	}

	return id, nil
}

// Get retrieves a page token by its numeric ID
func (c *RedisCursorCache) Get(ctx context.Context, id uint64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cursorRedisTimeout)
	defer cancel()

	token, err := c.client.Get(ctx, cursorIDKey+fmt.Sprintf("%d", id)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("cursor not found (ID: %d may have expired)", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return token, nil
}

// Close closes the Redis connection
func (c *RedisCursorCache) Close() error {
	return c.client.Close()
}

// MemoryCursorCache is the single-process fallback. Eviction is LRU
// over an intrusive list plus lazy TTL checks on Get.
type MemoryCursorCache struct {
	mu         sync.Mutex
	byID       map[uint64]*list.Element
	byToken    map[string]uint64
	order      *list.List // front = oldest
	nextID     uint64
	maxEntries int
	ttl        time.Duration
}

type memoryCursor struct {
	id        uint64
	token     string
	createdAt time.Time
}

// NewMemoryCursorCache creates a new in-memory cursor cache
func NewMemoryCursorCache(maxEntries int, ttl time.Duration) *MemoryCursorCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCursorCache{
		byID:       make(map[uint64]*list.Element),
		byToken:    make(map[string]uint64),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Set stores a page token and returns a short numeric ID
func (c *MemoryCursorCache) Set(ctx context.Context, token string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.byToken[token]; ok {
		elem := c.byID[id]
		elem.Value.(*memoryCursor).createdAt = time.Now()
		c.order.MoveToBack(elem)
		return id, nil
	}

	c.nextID++
	id := c.nextID

	elem := c.order.PushBack(&memoryCursor{
		id:        id,
		token:     token,
		createdAt: time.Now(),
	})
	c.byID[id] = elem
	c.byToken[token] = id

	for len(c.byID) > c.maxEntries {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest.Value.(*memoryCursor).id)
		}
	}

	return id, nil
}

// Get retrieves a page token by its numeric ID
func (c *MemoryCursorCache) Get(ctx context.Context, id uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byID[id]
	if !ok {
		return "", fmt.Errorf("cursor not found (ID: %d may have expired)", id)
	}

	cur := elem.Value.(*memoryCursor)
	if c.ttl > 0 && time.Since(cur.createdAt) > c.ttl {
		c.remove(id)
		return "", fmt.Errorf("cursor not found (ID: %d may have expired)", id)
	}

	return cur.token, nil
}

// Close drops all stored cursors
func (c *MemoryCursorCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[uint64]*list.Element)
	c.byToken = make(map[string]uint64)
	c.order.Init()
	return nil
}

// remove must be called with the lock held
func (c *MemoryCursorCache) remove(id uint64) {
	elem, ok := c.byID[id]
	if !ok {
		return
	}
	cur := elem.Value.(*memoryCursor)
	delete(c.byID, id)
	delete(c.byToken, cur.token)
	c.order.Remove(elem)
}

// hashToken creates a short hash of a page token for deduplication
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:8])
}

// NewCursorCache creates a cursor cache using Redis if available,
// otherwise in-memory
func NewCursorCache(redisURL string, ttl time.Duration, maxEntries int) (CursorCache, error) {
	if redisURL != "" {
		cache, err := NewRedisCursorCache(redisURL, ttl)
		if err != nil {
			return NewMemoryCursorCache(maxEntries, ttl), nil
		}
		return cache, nil
	}
	return NewMemoryCursorCache(maxEntries, ttl), nil
}
