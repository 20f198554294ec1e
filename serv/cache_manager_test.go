package serv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adtools/gaqlgate/core"
)

type campaignRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTestManager(t *testing.T) *CacheManager {
	t.Helper()
	mc, err := NewMemoryCache(100)
	if err != nil {
		t.Fatalf("failed to create memory cache: %v", err)
	}
	m := NewCacheManager(mc, nil, nil)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCacheManager_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	key, err := m.BuildKey("t1", core.ResourceCampaign, "list", map[string]any{"status": "ENABLED"})
	if err != nil {
		t.Fatalf("BuildKey failed: %v", err)
	}

	in := []campaignRow{{ID: 1, Name: "Brand"}, {ID: 2, Name: "Generic"}}
	m.Set(ctx, key, in, core.ResourceCampaign, 0)

	var out []campaignRow
	if !m.Get(ctx, key, &out) {
		t.Fatal("expected cache hit")
	}
	if len(out) != 2 || out[0].Name != "Brand" {
		t.Errorf("unexpected decoded value: %+v", out)
	}
}

func TestCacheManager_TTLResolution(t *testing.T) {
	overrides := map[core.ResourceType]time.Duration{
		core.ResourceCampaign: 2 * time.Minute,
	}
	mc, err := NewMemoryCache(100)
	if err != nil {
		t.Fatalf("failed to create memory cache: %v", err)
	}
	m := NewCacheManager(mc, overrides, nil)
	defer m.Close()

	if got := m.TTLFor(core.ResourceCampaign); got != 2*time.Minute {
		t.Errorf("expected override TTL, got %v", got)
	}
	if got := m.TTLFor(core.ResourceAd); got != core.ResourceAd.TTL() {
		t.Errorf("expected default TTL, got %v", got)
	}
}

func TestCacheManager_InvalidatePrefix(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	set := func(tenant string, rt core.ResourceType, op string) {
		key, err := m.BuildKey(tenant, rt, op, nil)
		if err != nil {
			t.Fatalf("BuildKey failed: %v", err)
		}
		m.Set(ctx, key, "value", rt, 0)
	}

	set("t1", core.ResourceCampaign, "list")
	set("t1", core.ResourceCampaign, "get")
	set("t1", core.ResourceKeyword, "list")
	set("t2", core.ResourceCampaign, "list")

	removed := m.Invalidate(ctx, "t1", core.ResourceCampaign, "")
	if removed != 2 {
		t.Errorf("expected 2 entries removed, got %d", removed)
	}

	// The other tenant and resource survive
	var out string
	key, _ := m.BuildKey("t2", core.ResourceCampaign, "list", nil)
	if !m.Get(ctx, key, &out) {
		t.Error("expected other tenant's entry to survive")
	}
	key, _ = m.BuildKey("t1", core.ResourceKeyword, "list", nil)
	if !m.Get(ctx, key, &out) {
		t.Error("expected other resource's entry to survive")
	}
}

func TestCacheManager_InvalidateUnsupportedBackend(t *testing.T) {
	// NullCache cannot list keys, so prefix invalidation is a no-op
	m := NewCacheManager(NewNullCache(), nil, nil)
	defer m.Close()

	if removed := m.Invalidate(context.Background(), "t1", core.ResourceCampaign, ""); removed != 0 {
		t.Errorf("expected 0 removed, got %d", removed)
	}
}

func TestCacheManager_CorruptEntryDropped(t *testing.T) {
	mc, err := NewMemoryCache(100)
	if err != nil {
		t.Fatalf("failed to create memory cache: %v", err)
	}
	m := NewCacheManager(mc, nil, nil)
	defer m.Close()

	ctx := context.Background()
	mc.Set(ctx, "bad", []byte("not json"), time.Hour)

	var out campaignRow
	if m.Get(ctx, "bad", &out) {
		t.Fatal("expected miss for undecodable entry")
	}
	// Entry was removed so the next read goes to the backend once
	if _, found := mc.Get(ctx, "bad"); found {
		t.Error("expected corrupt entry deleted")
	}
}

func TestCached_HitAndMiss(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) ([]campaignRow, error) {
		calls++
		return []campaignRow{{ID: 1, Name: "Brand"}}, nil
	}

	rows, hit, err := Cached(ctx, m, "k1", core.ResourceCampaign, fetch)
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	if hit {
		t.Error("expected miss on first call")
	}
	if len(rows) != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	rows, hit, err = Cached(ctx, m, "k1", core.ResourceCampaign, fetch)
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	if !hit {
		t.Error("expected hit on second call")
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Errorf("unexpected cached rows: %+v", rows)
	}
}

func TestCached_FetchError(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	wantErr := errors.New("remote unavailable")
	_, _, err := Cached(ctx, m, "k1", core.ResourceCampaign,
		func(ctx context.Context) (string, error) { return "", wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	// Errors are not cached
	var out string
	if m.Get(ctx, "k1", &out) {
		t.Error("expected no entry after failed fetch")
	}
}

func TestCached_ConcurrentSingleFetch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Cached(ctx, m, "shared", core.ResourceCampaign, fetch)
			if err != nil {
				t.Errorf("Cached failed: %v", err)
			}
			results[i] = v
		}(i)
	}

	// Let the goroutines pile up on the same key, then release
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("goroutine %d: expected 42, got %d", i, v)
		}
	}
}
