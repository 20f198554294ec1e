package serv

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryCursorCache_SetGet(t *testing.T) {
	c := NewMemoryCursorCache(100, time.Minute)
	defer c.Close()
	ctx := context.Background()

	id, err := c.Set(ctx, "page-token-1")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected first ID 1, got %d", id)
	}

	token, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if token != "page-token-1" {
		t.Errorf("expected page-token-1, got %q", token)
	}
}

func TestMemoryCursorCache_DedupesTokens(t *testing.T) {
	c := NewMemoryCursorCache(100, time.Minute)
	defer c.Close()
	ctx := context.Background()

	id1, _ := c.Set(ctx, "same-token")
	id2, _ := c.Set(ctx, "same-token")
	if id1 != id2 {
		t.Errorf("expected same ID for same token, got %d and %d", id1, id2)
	}

	id3, _ := c.Set(ctx, "other-token")
	if id3 == id1 {
		t.Error("expected distinct ID for distinct token")
	}
}

func TestMemoryCursorCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCursorCache(100, 10*time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	id, _ := c.Set(ctx, "short-lived")
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, id)
	if err == nil {
		t.Fatal("expected expired cursor error")
	}
	if !strings.Contains(err.Error(), "may have expired") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMemoryCursorCache_EvictsOldest(t *testing.T) {
	c := NewMemoryCursorCache(3, time.Minute)
	defer c.Close()
	ctx := context.Background()

	var ids []uint64
	for i := 0; i < 5; i++ {
		id, _ := c.Set(ctx, fmt.Sprintf("token-%d", i))
		ids = append(ids, id)
	}

	// The two oldest cursors were evicted
	for _, id := range ids[:2] {
		if _, err := c.Get(ctx, id); err == nil {
			t.Errorf("expected cursor %d to be evicted", id)
		}
	}
	for _, id := range ids[2:] {
		if _, err := c.Get(ctx, id); err != nil {
			t.Errorf("expected cursor %d to survive: %v", id, err)
		}
	}
}

func TestMemoryCursorCache_UnknownID(t *testing.T) {
	c := NewMemoryCursorCache(100, time.Minute)
	defer c.Close()

	_, err := c.Get(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for unknown cursor ID")
	}
	if !strings.Contains(err.Error(), "42") {
		t.Errorf("expected ID in error, got %v", err)
	}
}

func newTestRedisCursorCache(t *testing.T, ttl time.Duration) (*RedisCursorCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCursorCache("redis://"+mr.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create redis cursor cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCursorCache_SetGet(t *testing.T) {
	c, _ := newTestRedisCursorCache(t, time.Minute)
	ctx := context.Background()

	id1, err := c.Set(ctx, "token-a")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	id2, err := c.Set(ctx, "token-b")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if id2 != id1+1 {
		t.Errorf("expected sequential IDs, got %d and %d", id1, id2)
	}

	token, err := c.Get(ctx, id1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if token != "token-a" {
		t.Errorf("expected token-a, got %q", token)
	}
}

func TestRedisCursorCache_DedupesTokens(t *testing.T) {
	c, _ := newTestRedisCursorCache(t, time.Minute)
	ctx := context.Background()

	id1, _ := c.Set(ctx, "same-token")
	id2, _ := c.Set(ctx, "same-token")
	if id1 != id2 {
		t.Errorf("expected same ID for same token, got %d and %d", id1, id2)
	}
}

func TestRedisCursorCache_TTLExpiry(t *testing.T) {
	c, mr := newTestRedisCursorCache(t, time.Minute)
	ctx := context.Background()

	id, _ := c.Set(ctx, "short-lived")
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, id)
	if err == nil {
		t.Fatal("expected expired cursor error")
	}
	if !strings.Contains(err.Error(), "may have expired") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewCursorCache_Fallback(t *testing.T) {
	// Unreachable Redis falls back to memory instead of failing
	c, err := NewCursorCache("redis://127.0.0.1:1", time.Minute, 100)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*MemoryCursorCache); !ok {
		t.Errorf("expected memory fallback, got %T", c)
	}

	c2, err := NewCursorCache("", time.Minute, 100)
	if err != nil {
		t.Fatalf("NewCursorCache failed: %v", err)
	}
	defer c2.Close()
	if _, ok := c2.(*MemoryCursorCache); !ok {
		t.Errorf("expected memory cache, got %T", c2)
	}
}
