package core

import (
	"sort"
	"time"
)

// ResourceType tags a category of Google Ads data for cache TTL policy.
// The set is closed; call sites must use one of the declared constants.
type ResourceType string

const (
	ResourceAccount        ResourceType = "account"
	ResourceCampaign       ResourceType = "campaign"
	ResourceAdGroup        ResourceType = "ad_group"
	ResourceAd             ResourceType = "ad"
	ResourceKeyword        ResourceType = "keyword"
	ResourceSearchTerm     ResourceType = "search_term"
	ResourcePerformance    ResourceType = "performance"
	ResourceRecommendation ResourceType = "recommendation"
	ResourceAudience       ResourceType = "audience"
	ResourceConversion     ResourceType = "conversion"
)

// DefaultTTL is the freshness window used when a resource type has no
// entry in the TTL table.
const DefaultTTL = time.Hour

// Per-resource freshness windows. Account data rarely changes while
// performance metrics update every few minutes.
var resourceTTLs = map[ResourceType]time.Duration{
	ResourceAccount:        time.Hour,
	ResourceCampaign:       30 * time.Minute,
	ResourceAdGroup:        30 * time.Minute,
	ResourceAd:             15 * time.Minute,
	ResourceKeyword:        15 * time.Minute,
	ResourceSearchTerm:     10 * time.Minute,
	ResourcePerformance:    5 * time.Minute,
	ResourceRecommendation: time.Hour,
	ResourceAudience:       30 * time.Minute,
	ResourceConversion:     10 * time.Minute,
}

// TTL returns the default freshness window for the resource type.
// Unmapped values fall back to DefaultTTL.
func (rt ResourceType) TTL() time.Duration {
	if ttl, ok := resourceTTLs[rt]; ok {
		return ttl
	}
	return DefaultTTL
}

// Valid reports whether rt is one of the declared resource types.
func (rt ResourceType) Valid() bool {
	_, ok := resourceTTLs[rt]
	return ok
}

// ResourceTypes returns all declared resource types in sorted order.
func ResourceTypes() []ResourceType {
	out := make([]ResourceType, 0, len(resourceTTLs))
	for rt := range resourceTTLs {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResourceTypeFor maps a query resource name (the FROM target) to the
// resource type that governs its cache TTL. Unknown resources map to a
// type carrying the resource name itself, which falls back to
// DefaultTTL.
func ResourceTypeFor(resource string) ResourceType {
	switch resource {
	case "customer", "customer_client":
		return ResourceAccount
	case "campaign", "campaign_budget", "campaign_criterion", "campaign_asset", "bidding_strategy":
		return ResourceCampaign
	case "ad_group", "ad_group_criterion", "ad_group_asset":
		return ResourceAdGroup
	case "ad_group_ad", "asset", "extension_feed_item":
		return ResourceAd
	case "keyword_view":
		return ResourceKeyword
	case "search_term_view":
		return ResourceSearchTerm
	case "geographic_view", "age_range_view", "gender_view", "landing_page_view", "shopping_performance_view":
		return ResourcePerformance
	case "recommendation":
		return ResourceRecommendation
	case "audience", "user_list", "ad_group_audience_view":
		return ResourceAudience
	case "conversion_action":
		return ResourceConversion
	default:
		return ResourceType(resource)
	}
}
