package serv

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adtools/gaqlgate/core"
)

// registerExecutionTools registers the query execution tools
func (ms *mcpServer) registerExecutionTools() {
	// execute_query - Validate, execute and cache a query
	ms.srv.AddTool(mcp.NewTool(
		"execute_query",
		mcp.WithDescription("Execute a Google Ads query and return its rows. Results "+
			"are cached per tenant with resource-dependent TTLs; identical queries "+
			"within the TTL are served from cache. Large result sets are capped and "+
			"return a cursor_id for fetch_more."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The GAQL query to execute"),
		),
		mcp.WithString("tenant",
			mcp.Description("Account to query; defaults to the configured tenant"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Cap on rows returned by this call"),
		),
		mcp.WithString("format",
			mcp.Description("Response format: json (default), markdown or summary"),
		),
		mcp.WithNumber("page",
			mcp.Description("Return only this page of the result (1-indexed)"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Rows per page when page is set"),
		),
		mcp.WithBoolean("no_cache",
			mcp.Description("Bypass the cache for this call"),
		),
	), ms.handleExecuteQuery)

	// fetch_more - Resume a capped result stream
	ms.srv.AddTool(mcp.NewTool(
		"fetch_more",
		mcp.WithDescription("Fetch the next batch of rows from an earlier execute_query "+
			"call, using the cursor_id it returned. Returns a new cursor_id while more "+
			"rows remain."),
		mcp.WithNumber("cursor_id",
			mcp.Required(),
			mcp.Description("Cursor ID from a previous execute_query or fetch_more call"),
		),
		mcp.WithString("tenant",
			mcp.Description("Account to query; defaults to the configured tenant"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Cap on rows returned by this call"),
		),
		mcp.WithString("format",
			mcp.Description("Response format: json (default), markdown or summary"),
		),
		mcp.WithNumber("page",
			mcp.Description("Return only this page of the result (1-indexed)"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Rows per page when page is set"),
		),
	), ms.handleFetchMore)
}

// executePayload is the cacheable part of an execution result
type executePayload struct {
	Rows     []core.Row `json:"rows"`
	HasMore  bool       `json:"has_more"`
	CursorID uint64     `json:"cursor_id,omitempty"`
}

// ExecuteResult is the execute_query / fetch_more response
type ExecuteResult struct {
	Rows       []core.Row      `json:"rows"`
	RowCount   int             `json:"row_count"`
	Complexity core.Complexity `json:"complexity,omitempty"`
	Cached     bool            `json:"cached"`
	HasMore    bool            `json:"has_more"`
	CursorID   uint64          `json:"cursor_id,omitempty"`
	Pagination map[string]any  `json:"pagination,omitempty"`
}

// handleExecuteQuery validates, executes and caches a query
func (ms *mcpServer) handleExecuteQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	tenant, _ := args["tenant"].(string)
	format, _ := args["format"].(string)
	noCache, _ := args["no_cache"].(bool)

	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if tenant == "" {
		tenant = ms.service.conf.Tenant
	}
	if tenant == "" {
		return mcp.NewToolResultError("tenant is required (none configured)"), nil
	}

	analysis := ms.service.optimizer.AnalyzeQuery(query)
	if !analysis.IsValid {
		return mcp.NewToolResultError(
			"invalid query: " + strings.Join(analysis.Errors, "; ")), nil
	}

	maxResults := ms.maxResults(args)
	resource := core.ExtractResource(query)
	rt := core.ResourceTypeFor(resource)

	fetch := func(ctx context.Context) (executePayload, error) {
		return ms.runQuery(ctx, tenant, query, maxResults)
	}

	var payload executePayload
	var fromCache bool
	var err error

	if noCache {
		payload, err = fetch(ctx)
	} else {
		key, kerr := ms.service.cache.BuildKey(tenant, rt, "execute_query",
			map[string]any{"query": query, "max_results": maxResults})
		if kerr != nil {
			return mcp.NewToolResultError(kerr.Error()), nil
		}
		payload, fromCache, err = Cached(ctx, ms.service.cache, key, rt, fetch)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query execution failed: %v", err)), nil
	}

	result := ExecuteResult{
		Rows:       payload.Rows,
		RowCount:   len(payload.Rows),
		Complexity: analysis.Complexity,
		Cached:     fromCache,
		HasMore:    payload.HasMore,
		CursorID:   payload.CursorID,
	}

	return ms.renderExecuteResult(ms.paginateResult(result, args), format)
}

// handleFetchMore resumes a capped stream from a cursor ID
func (ms *mcpServer) handleFetchMore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	tenant, _ := args["tenant"].(string)
	format, _ := args["format"].(string)

	cursorArg, ok := args["cursor_id"].(float64)
	if !ok || cursorArg < 1 {
		return mcp.NewToolResultError("cursor_id is required"), nil
	}
	cursorID := uint64(cursorArg)

	if tenant == "" {
		tenant = ms.service.conf.Tenant
	}

	resumable, ok := ms.service.transport.(Resumable)
	if !ok {
		return mcp.NewToolResultError("transport does not support resuming streams"), nil
	}

	token, err := ms.service.cursorCache.Get(ctx, cursorID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	src, err := resumable.Resume(ctx, tenant, token, ms.service.conf.MCP.PageSize)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resume failed: %v", err)), nil
	}

	payload, err := ms.collect(ctx, src, ms.maxResults(args))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query execution failed: %v", err)), nil
	}

	result := ExecuteResult{
		Rows:     payload.Rows,
		RowCount: len(payload.Rows),
		HasMore:  payload.HasMore,
		CursorID: payload.CursorID,
	}

	return ms.renderExecuteResult(ms.paginateResult(result, args), format)
}

// paginateResult applies a presentation page over the collected rows
// when the caller asked for one. Streaming caps and cursors are
// unaffected; this only narrows what a single response carries.
func (ms *mcpServer) paginateResult(result ExecuteResult, args map[string]any) ExecuteResult {
	pageArg, ok := args["page"].(float64)
	if !ok || pageArg < 1 {
		return result
	}

	pageSize := ms.service.conf.MCP.PageSize
	if v, ok := args["page_size"].(float64); ok && v > 0 {
		pageSize = int(v)
	}

	view := core.Paginate(result.Rows, int(pageArg), pageSize)
	result.Rows = view.GetPage(0)
	result.RowCount = len(result.Rows)
	result.Pagination = view.ToMap(false)
	return result
}

// maxResults resolves the per-call row cap
func (ms *mcpServer) maxResults(args map[string]any) int {
	if v, ok := args["max_results"].(float64); ok && v > 0 {
		return int(v)
	}
	return ms.service.conf.MCP.MaxResults
}

// runQuery starts a fresh stream for query and collects it
func (ms *mcpServer) runQuery(ctx context.Context, tenant, query string, maxResults int) (executePayload, error) {
	src, err := ms.service.transport.Query(ctx, tenant, query, ms.service.conf.MCP.PageSize)
	if err != nil {
		return executePayload{}, err
	}
	return ms.collect(ctx, src, maxResults)
}

// collect drains src up to maxResults rows and registers a cursor for
// the remainder when the source can issue a resumption token.
func (ms *mcpServer) collect(ctx context.Context, src core.PageSource, maxResults int) (executePayload, error) {
	rows, err := core.CollectAll(ctx, src, core.StreamConfig{MaxResults: maxResults})
	if err != nil {
		return executePayload{}, err
	}

	payload := executePayload{Rows: rows}

	if ts, ok := src.(TokenSource); ok {
		if token := ts.Token(); token != "" {
			payload.HasMore = true
			id, err := ms.service.cursorCache.Set(ctx, token)
			if err != nil {
				ms.service.log.Warnf("failed to store cursor: %s", err)
			} else {
				payload.CursorID = id
			}
		}
	}

	return payload, nil
}

// renderExecuteResult formats a result as JSON, markdown or summary
func (ms *mcpServer) renderExecuteResult(result ExecuteResult, format string) (*mcp.CallToolResult, error) {
	var text string

	switch format {
	case "", "json":
		data, err := mcpMarshalJSON(result, true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text = string(data)

	case "markdown":
		text = ToMarkdown(result.Rows, "Query Results", nil)
		if result.HasMore {
			text += fmt.Sprintf("\n\nMore rows available: call fetch_more with cursor_id %d.", result.CursorID)
		}

	case "summary":
		text = ToSummary(result.Rows, "Query Summary", numericFields(result.Rows))

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", format)), nil
	}

	return mcp.NewToolResultText(Truncate(text)), nil
}

// numericFields lists the row keys holding numeric values, taken from
// the first row. Fixture and API rows are uniform per query.
func numericFields(rows []core.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	var fields []string
	for k, v := range rows[0] {
		if _, ok := numericValue(v); ok {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}
