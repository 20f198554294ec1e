package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// KeyBuilder builds deterministic cache keys from request parameters.
type KeyBuilder struct{}

// NewKeyBuilder creates a new cache key builder
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

// Build creates a cache key for a (tenant, resource type, operation)
// call. Extra parameters are JSON-serialized with sorted keys and
// hashed, so two logically identical requests always produce the same
// key regardless of argument order. An empty params map yields a key
// with no hash segment, reproducible byte-for-byte across runs.
func (b *KeyBuilder) Build(
	tenant string,
	rt ResourceType,
	operation string,
	params map[string]any,
) (string, error) {
	parts := []string{
		"tenant:" + tenant,
		"resource:" + string(rt),
		"operation:" + operation,
	}

	if len(params) > 0 {
		// encoding/json sorts map keys, so the digest is stable for
		// any insertion order.
		raw, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		sum := sha256.Sum256(raw)
		parts = append(parts, "params:"+hex.EncodeToString(sum[:]))
	}

	return strings.Join(parts, ":"), nil
}

// KeyPrefix returns the key prefix shared by all entries for a tenant,
// optionally narrowed to a resource type and operation. Used for
// best-effort prefix invalidation.
func (b *KeyBuilder) KeyPrefix(tenant string, rt ResourceType, operation string) string {
	prefix := "tenant:" + tenant + ":"
	if rt == "" {
		return prefix
	}
	prefix += "resource:" + string(rt) + ":"
	if operation == "" {
		return prefix
	}
	return prefix + "operation:" + operation
}

// BuildCacheKey is a convenience function that builds a cache key
func BuildCacheKey(tenant string, rt ResourceType, operation string, params map[string]any) (string, error) {
	return NewKeyBuilder().Build(tenant, rt, operation, params)
}
