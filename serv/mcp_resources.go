package serv

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adtools/gaqlgate/core"
)

// registerResourceTools registers the list_resources tool
func (ms *mcpServer) registerResourceTools() {
	ms.srv.AddTool(mcp.NewTool(
		"list_resources",
		mcp.WithDescription("List the resources a query may read FROM, grouped by the "+
			"cache category that governs their result freshness. Each category reports "+
			"its cache TTL in seconds. Call this before writing a query against an "+
			"unfamiliar resource."),
	), ms.handleListResources)
}

// ResourceCategory groups queryable resources under one cache TTL
type ResourceCategory struct {
	Resources  []string `json:"resources"`
	TTLSeconds int      `json:"ttl_seconds"`
}

// ListResourcesResult is the list_resources response
type ListResourcesResult struct {
	Categories map[string]ResourceCategory `json:"categories"`
	Total      int                         `json:"total"`
}

// handleListResources reports the queryable resource allow-list
func (ms *mcpServer) handleListResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resources := core.QueryableResources()
	overrides := ms.service.conf.TTLOverrides()

	categories := make(map[string]ResourceCategory)
	for _, r := range resources {
		rt := core.ResourceTypeFor(r)

		ttl := rt.TTL()
		if o, ok := overrides[rt]; ok {
			ttl = o
		}

		cat := categories[string(rt)]
		cat.Resources = append(cat.Resources, r)
		cat.TTLSeconds = int(ttl.Seconds())
		categories[string(rt)] = cat
	}

	result := ListResourcesResult{
		Categories: categories,
		Total:      len(resources),
	}

	data, err := mcpMarshalJSON(result, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
