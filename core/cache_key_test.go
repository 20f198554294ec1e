package core

import (
	"strings"
	"testing"
)

func TestBuildCacheKey_Deterministic(t *testing.T) {
	b := NewKeyBuilder()

	// Two maps built in different insertion order.
	p1 := map[string]any{}
	p1["status"] = "ENABLED"
	p1["limit"] = 100
	p1["fields"] = []any{"campaign.id", "campaign.name"}

	p2 := map[string]any{}
	p2["fields"] = []any{"campaign.id", "campaign.name"}
	p2["limit"] = 100
	p2["status"] = "ENABLED"

	k1, err := b.Build("1234567890", ResourceCampaign, "list_campaigns", p1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	k2, err := b.Build("1234567890", ResourceCampaign, "list_campaigns", p2)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if k1 != k2 {
		t.Errorf("Expected identical keys for same params, got %q and %q", k1, k2)
	}
}

func TestBuildCacheKey_ParamSensitive(t *testing.T) {
	b := NewKeyBuilder()
	base := map[string]any{"status": "ENABLED", "limit": 100, "name": "spring"}

	baseKey, err := b.Build("tenant-1", ResourceCampaign, "list", base)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	seen := map[string]bool{baseKey: true}

	// Changing any single parameter value must change the key.
	variants := []map[string]any{
		{"status": "PAUSED", "limit": 100, "name": "spring"},
		{"status": "ENABLED", "limit": 101, "name": "spring"},
		{"status": "ENABLED", "limit": 100, "name": "autumn"},
		{"status": "ENABLED", "limit": 100, "name": "spring", "extra": true},
	}

	for i, params := range variants {
		key, err := b.Build("tenant-1", ResourceCampaign, "list", params)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if seen[key] {
			t.Errorf("variant %d produced a colliding key %q", i, key)
		}
		seen[key] = true
	}
}

func TestBuildCacheKey_SegmentsDiffer(t *testing.T) {
	b := NewKeyBuilder()

	k1, _ := b.Build("t1", ResourceCampaign, "list", nil)
	k2, _ := b.Build("t2", ResourceCampaign, "list", nil)
	k3, _ := b.Build("t1", ResourceKeyword, "list", nil)
	k4, _ := b.Build("t1", ResourceCampaign, "get", nil)

	keys := []string{k1, k2, k3, k4}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[i] == keys[j] {
				t.Errorf("keys %d and %d collide: %q", i, j, keys[i])
			}
		}
	}
}

func TestBuildCacheKey_NoParamsNoHashSegment(t *testing.T) {
	b := NewKeyBuilder()

	key, err := b.Build("1234567890", ResourceAccount, "get_account", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := "tenant:1234567890:resource:account:operation:get_account"
	if key != want {
		t.Errorf("Expected %q, got %q", want, key)
	}
	if strings.Contains(key, "params:") {
		t.Errorf("Expected no params segment for empty params, got %q", key)
	}

	// Empty map behaves like nil.
	key2, err := b.Build("1234567890", ResourceAccount, "get_account", map[string]any{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if key2 != want {
		t.Errorf("Expected %q, got %q", want, key2)
	}
}

func TestKeyPrefix(t *testing.T) {
	b := NewKeyBuilder()

	key, _ := b.Build("t1", ResourceCampaign, "list", map[string]any{"a": 1})

	tests := []struct {
		rt ResourceType
		op string
	}{
		{"", ""},
		{ResourceCampaign, ""},
		{ResourceCampaign, "list"},
	}

	for _, tc := range tests {
		prefix := b.KeyPrefix("t1", tc.rt, tc.op)
		if !strings.HasPrefix(key, prefix) {
			t.Errorf("key %q does not have prefix %q", key, prefix)
		}
	}

	otherTenant := b.KeyPrefix("t2", "", "")
	if strings.HasPrefix(key, otherTenant) {
		t.Errorf("key %q unexpectedly matches prefix %q", key, otherTenant)
	}
}

func TestResourceTypeTTL(t *testing.T) {
	if ResourcePerformance.TTL() >= ResourceAccount.TTL() {
		t.Error("performance data should expire sooner than account data")
	}
	if got := ResourceType("unmapped").TTL(); got != DefaultTTL {
		t.Errorf("Expected fallback TTL %v, got %v", DefaultTTL, got)
	}
	if ResourceType("unmapped").Valid() {
		t.Error("unmapped resource type should not be valid")
	}
	if !ResourceCampaign.Valid() {
		t.Error("campaign should be a valid resource type")
	}
}

func TestResourceTypeFor(t *testing.T) {
	tests := []struct {
		resource string
		want     ResourceType
	}{
		{"campaign", ResourceCampaign},
		{"customer", ResourceAccount},
		{"keyword_view", ResourceKeyword},
		{"search_term_view", ResourceSearchTerm},
		{"shopping_performance_view", ResourcePerformance},
		{"user_list", ResourceAudience},
	}
	for _, tc := range tests {
		if got := ResourceTypeFor(tc.resource); got != tc.want {
			t.Errorf("ResourceTypeFor(%q) = %q, want %q", tc.resource, got, tc.want)
		}
	}

	// Unknown resources keep their name and fall back to the default TTL.
	rt := ResourceTypeFor("something_new")
	if rt.TTL() != DefaultTTL {
		t.Errorf("Expected default TTL for unknown resource, got %v", rt.TTL())
	}
}
