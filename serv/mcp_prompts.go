package serv

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adtools/gaqlgate/core"
)

// registerPrompts registers all MCP prompts with the server
func (ms *mcpServer) registerPrompts() {
	// write_query - Help LLMs construct valid queries
	ms.srv.AddPrompt(mcp.NewPrompt(
		"write_query",
		mcp.WithPromptDescription("Generate guidance for writing a valid Google Ads query "+
			"against a resource. Returns the query grammar, recommended filter fields for "+
			"the resource, and performance rules the validator enforces."),
		mcp.WithArgument("resource",
			mcp.ArgumentDescription("Resource to query (e.g. campaign, keyword_view)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("intent",
			mcp.ArgumentDescription("What you want to retrieve (e.g. 'paused campaigns', 'last week's keyword clicks')"),
			mcp.RequiredArgument(),
		),
	), ms.handleWriteQuery)
}

// handleWriteQuery returns structured guidance for constructing queries
func (ms *mcpServer) handleWriteQuery(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	resource := req.Params.Arguments["resource"]
	intent := req.Params.Arguments["intent"]

	if resource == "" {
		return nil, fmt.Errorf("resource argument is required")
	}

	analysis := ms.service.optimizer.AnalyzeQuery("SELECT campaign.id FROM " + resource)
	knownResource := analysis.IsValid

	var sb strings.Builder

	fmt.Fprintf(&sb, "# Query Guide for Resource: %s\n\n", resource)
	fmt.Fprintf(&sb, "**Retrieval Intent**: %s\n\n", intent)

	if !knownResource {
		sb.WriteString("## Unknown Resource\n\n")
		fmt.Fprintf(&sb, "`%s` is not a queryable resource. Valid resources:\n\n", resource)
		for _, r := range core.QueryableResources() {
			fmt.Fprintf(&sb, "- `%s`\n", r)
		}
		sb.WriteString("\nPick the closest match and re-request this prompt.\n")
		return promptResult(resource, sb.String()), nil
	}

	sb.WriteString("## Query Grammar\n\n")
	sb.WriteString("```\n")
	sb.WriteString("SELECT <field>[, <field>...]\n")
	fmt.Fprintf(&sb, "FROM %s\n", resource)
	sb.WriteString("[WHERE <condition> [AND <condition>...]]\n")
	sb.WriteString("[ORDER BY <field> [ASC|DESC]]\n")
	sb.WriteString("[LIMIT <n>]\n")
	sb.WriteString("```\n\n")

	sb.WriteString("Field names are dotted paths on the resource, for example ")
	fmt.Fprintf(&sb, "`%s.id` or `metrics.clicks`.\n\n", resource)

	if hints := ms.service.optimizer.SuggestIndexes(resource, nil); len(hints) > 0 {
		sb.WriteString("## Recommended Filters\n\n")
		for _, h := range hints {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Date Ranges\n\n")
	sb.WriteString("Metric queries should bound their data by date:\n")
	sb.WriteString("```\n")
	sb.WriteString("WHERE segments.date DURING LAST_30_DAYS\n")
	sb.WriteString("WHERE segments.date BETWEEN '2026-08-01' AND '2026-08-31'\n")
	sb.WriteString("```\n\n")

	sb.WriteString("## Validation Rules\n\n")
	sb.WriteString("- Always include a LIMIT clause; 1000 is appended automatically when missing\n")
	sb.WriteString("- Select 20 fields or fewer; more than 30 is rejected\n")
	sb.WriteString("- Avoid SELECT *; list the fields you need\n")
	sb.WriteString("- String literals use single quotes: `campaign.status = 'ENABLED'`\n\n")

	sb.WriteString("Run the finished query through `validate_query` before `execute_query`.\n")

	return promptResult(resource, sb.String()), nil
}

func promptResult(resource, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(
		fmt.Sprintf("Query guide for %s", resource),
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(
				mcp.RoleAssistant,
				mcp.NewTextContent(text),
			),
		},
	)
}
