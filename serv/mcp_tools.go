package serv

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adtools/gaqlgate/core"
)

// registerQueryTools registers the query analysis tools
func (ms *mcpServer) registerQueryTools() {
	// validate_query - Static analysis without execution
	ms.srv.AddTool(mcp.NewTool(
		"validate_query",
		mcp.WithDescription("Validate a Google Ads query without executing it. "+
			"Returns syntax errors, the complexity rating, performance warnings "+
			"and improvement suggestions. Call this before execute_query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The GAQL query to validate"),
		),
	), ms.handleValidateQuery)

	// optimize_query - Rewrite plus index suggestions
	ms.srv.AddTool(mcp.NewTool(
		"optimize_query",
		mcp.WithDescription("Rewrite a Google Ads query for safer execution: adds a "+
			"default LIMIT when missing and formats one clause per line. Also "+
			"returns filter fields known to speed up the query's resource."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The GAQL query to optimize"),
		),
	), ms.handleOptimizeQuery)
}

// registerCacheTools registers the cache management tools
func (ms *mcpServer) registerCacheTools() {
	// cache_stats - Hit/miss counters and hit rate
	ms.srv.AddTool(mcp.NewTool(
		"cache_stats",
		mcp.WithDescription("Return cache performance counters: hits, misses, sets, "+
			"invalidations, evictions, bytes cached and the overall hit rate."),
	), ms.handleCacheStats)

	// invalidate_cache - Prefix or full invalidation
	ms.srv.AddTool(mcp.NewTool(
		"invalidate_cache",
		mcp.WithDescription("Invalidate cached query results. With no arguments the "+
			"whole cache is cleared. Pass tenant (and optionally resource_type and "+
			"operation) to narrow the scope; narrowing requires a backend that can "+
			"list its keys, otherwise nothing is removed."),
		mcp.WithString("tenant",
			mcp.Description("Tenant whose entries to invalidate"),
		),
		mcp.WithString("resource_type",
			mcp.Description("Resource type to invalidate (e.g. campaign, keyword)"),
		),
		mcp.WithString("operation",
			mcp.Description("Operation name to invalidate"),
		),
	), ms.handleInvalidateCache)
}

// ValidateResult is the validate_query response
type ValidateResult struct {
	Query    string             `json:"query"`
	Analysis core.QueryAnalysis `json:"analysis"`
}

// handleValidateQuery statically analyzes a query
func (ms *mcpServer) handleValidateQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)

	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	result := ValidateResult{
		Query:    query,
		Analysis: ms.service.optimizer.AnalyzeQuery(query),
	}

	data, err := mcpMarshalJSON(result, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// OptimizeResult is the optimize_query response
type OptimizeResult struct {
	OriginalQuery  string   `json:"original_query"`
	OptimizedQuery string   `json:"optimized_query"`
	Changed        bool     `json:"changed"`
	IndexHints     []string `json:"index_hints,omitempty"`
	AnalysisErrors []string `json:"analysis_errors,omitempty"`
}

// handleOptimizeQuery rewrites a query and suggests filter fields
func (ms *mcpServer) handleOptimizeQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)

	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	analysis := ms.service.optimizer.AnalyzeQuery(query)
	optimized := ms.service.optimizer.OptimizeQuery(query)

	result := OptimizeResult{
		OriginalQuery:  query,
		OptimizedQuery: optimized,
		Changed:        optimized != query,
		IndexHints:     ms.service.optimizer.SuggestIndexes(core.ExtractResource(query), nil),
		AnalysisErrors: analysis.Errors,
	}

	data, err := mcpMarshalJSON(result, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// CacheStatsResult is the cache_stats response
type CacheStatsResult struct {
	Counters map[string]int64 `json:"counters"`
	HitRate  float64          `json:"hit_rate"`
}

// handleCacheStats reports cache counters
func (ms *mcpServer) handleCacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metrics := ms.service.cache.Metrics()

	result := CacheStatsResult{
		Counters: metrics.Snapshot(),
		HitRate:  metrics.HitRate(),
	}

	data, err := mcpMarshalJSON(result, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// InvalidateResult is the invalidate_cache response
type InvalidateResult struct {
	Scope   string `json:"scope"`
	Removed int    `json:"removed,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// handleInvalidateCache drops cached entries
func (ms *mcpServer) handleInvalidateCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	tenant, _ := args["tenant"].(string)
	resourceType, _ := args["resource_type"].(string)
	operation, _ := args["operation"].(string)

	if tenant == "" && (resourceType != "" || operation != "") {
		return mcp.NewToolResultError("tenant is required when narrowing by resource_type or operation"), nil
	}

	var result InvalidateResult
	if tenant == "" {
		if err := ms.service.cache.Clear(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache clear failed: %v", err)), nil
		}
		result = InvalidateResult{Scope: "all", Cleared: true}
	} else {
		rt := core.ResourceType(resourceType)
		if resourceType != "" && !rt.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resourceType)), nil
		}
		removed := ms.service.cache.Invalidate(ctx, tenant, rt, operation)
		result = InvalidateResult{
			Scope:   ms.service.cache.keys.KeyPrefix(tenant, rt, operation),
			Removed: removed,
		}
	}

	data, err := mcpMarshalJSON(result, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
