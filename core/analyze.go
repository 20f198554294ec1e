package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/adtools/gaqlgate/core/internal/gaql"
)

// Complexity levels re-exported from the query grammar package.
type Complexity = gaql.Complexity

const (
	ComplexitySimple      = gaql.Simple
	ComplexityModerate    = gaql.Moderate
	ComplexityComplex     = gaql.Complex
	ComplexityVeryComplex = gaql.VeryComplex
)

// Field-count ceilings. Above the soft ceiling the analysis warns;
// above the hard ceiling the remote execution engine rejects the query,
// so the analysis reports a blocking error.
const (
	softFieldLimit = 20
	hardFieldLimit = 30
)

// defaultRowLimit is appended by OptimizeQuery when a query has no
// row-limiting clause.
const defaultRowLimit = 1000

// QueryAnalysis is the result of statically analyzing one query string.
// It carries no identity beyond the analyzed string and is never
// mutated after being returned.
type QueryAnalysis struct {
	IsValid         bool       `json:"is_valid"`
	Complexity      Complexity `json:"complexity"`
	FieldCount      int        `json:"field_count"`
	Warnings        []string   `json:"warnings"`
	Suggestions     []string   `json:"suggestions"`
	Errors          []string   `json:"errors"`
	HasAggregation  bool       `json:"has_aggregation"`
	HasSegmentation bool       `json:"has_segmentation"`
}

// Optimizer analyzes and rewrites queries before they are sent to the
// remote execution engine. It is stateless and safe for concurrent use;
// construct one explicitly and pass it where needed.
type Optimizer struct{}

// NewOptimizer creates a new query optimizer
func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

// AnalyzeQuery validates the query and collects warnings, suggestions
// and errors. Syntax errors make the result invalid but analysis still
// populates the remaining fields on a best-effort basis so the caller
// gets the full picture in one pass.
func (o *Optimizer) AnalyzeQuery(query string) QueryAnalysis {
	var warnings, suggestions, errs []string

	syntaxOK, syntaxErrs := gaql.ValidateSyntax(query)
	errs = append(errs, syntaxErrs...)

	resource := gaql.ExtractResource(query)
	if ok, resErr := gaql.ValidateResource(resource); !ok {
		errs = append(errs, resErr)
	}

	fields := gaql.ExtractFields(query)
	fieldCount := len(fields)

	hasMetrics := false
	hasWildcard := false
	for _, f := range fields {
		if strings.HasPrefix(f, "metrics.") || gaql.MetricsFields[f] {
			hasMetrics = true
		}
		if f == "*" {
			hasWildcard = true
		}
	}

	hasDateFilter := gaql.HasDateFilter(query)

	if hasMetrics && !hasDateFilter {
		warnings = append(warnings,
			"Query includes metrics but no date range. "+
				"Consider adding 'WHERE segments.date DURING LAST_30_DAYS' for better performance.")
	}

	if hasWildcard {
		warnings = append(warnings,
			"Using SELECT * may return unnecessary data. "+
				"Specify only the fields you need for better performance.")
		suggestions = append(suggestions, "List specific fields instead of using SELECT *")
	}

	switch {
	case fieldCount > hardFieldLimit:
		errs = append(errs, fmt.Sprintf(
			"Query selects %d fields, which exceeds the API limit. Reduce to %d or fewer fields.",
			fieldCount, hardFieldLimit))
	case fieldCount > softFieldLimit:
		warnings = append(warnings, fmt.Sprintf(
			"Query selects %d fields. Consider reducing to only necessary fields for better performance.",
			fieldCount))
	}

	if !gaql.HasLimit(query) {
		suggestions = append(suggestions,
			"Add LIMIT clause to prevent accidentally fetching too many rows. Example: LIMIT 1000")
	}

	complexity := gaql.AnalyzeComplexity(query)
	if complexity.AtLeast(ComplexityComplex) {
		suggestions = append(suggestions,
			"Consider breaking this complex query into multiple simpler queries "+
				"for better performance and maintainability.")
	}

	// Resource-specific heuristics.
	switch resource {
	case "search_term_view":
		if !hasDateFilter {
			warnings = append(warnings,
				"search_term_view queries should always include a date range "+
					"to avoid fetching excessive historical data.")
		}
	case "keyword_view":
		suggestions = append(suggestions,
			"For keyword performance data, consider filtering by campaign_id "+
				"or ad_group_id to reduce result set.")
	}

	return QueryAnalysis{
		IsValid:         syntaxOK && len(errs) == 0,
		Complexity:      complexity,
		FieldCount:      fieldCount,
		Warnings:        warnings,
		Suggestions:     suggestions,
		Errors:          errs,
		HasAggregation:  gaql.HasAggregation(query),
		HasSegmentation: gaql.HasSegmentation(query),
	}
}

// OptimizeQuery appends a default LIMIT when none is present and breaks
// the query into one clause per line. The rewrite is idempotent:
// applying it twice yields the same string as applying it once.
func (o *Optimizer) OptimizeQuery(query string) string {
	optimized := strings.TrimSpace(query)

	if !gaql.HasLimit(optimized) {
		optimized += fmt.Sprintf(" LIMIT %d", defaultRowLimit)
	}

	return formatQuery(optimized)
}

var clauseBreaks = []struct {
	re      *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\s+FROM\s+`), "\nFROM "},
	{regexp.MustCompile(`(?i)\s+WHERE\s+`), "\nWHERE "},
	{regexp.MustCompile(`(?i)\s+ORDER BY\s+`), "\nORDER BY "},
	{regexp.MustCompile(`(?i)\s+LIMIT\s+`), "\nLIMIT "},
}

// formatQuery inserts a newline before each major clause keyword.
func formatQuery(query string) string {
	out := strings.TrimSpace(query)
	for _, cb := range clauseBreaks {
		out = cb.re.ReplaceAllString(out, cb.replace)
	}
	return out
}

// ExtractResource returns the resource a query reads from, or "".
func ExtractResource(query string) string {
	return gaql.ExtractResource(query)
}

// QueryableResources returns the sorted allow-list of resource names a
// query may read from.
func QueryableResources() []string {
	out := make([]string, 0, len(gaql.Resources))
	for r := range gaql.Resources {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// SuggestIndexes lists filter fields known to improve execution
// performance for the resource that are not already in filters.
func (o *Optimizer) SuggestIndexes(resource string, filters []string) []string {
	indexFields := map[string][]string{
		"campaign":         {"campaign.id", "campaign.status", "segments.date"},
		"ad_group":         {"ad_group.id", "campaign.id", "ad_group.status"},
		"keyword_view":     {"ad_group.id", "campaign.id", "segments.date"},
		"search_term_view": {"segments.date", "campaign.id"},
	}

	known, ok := indexFields[resource]
	if !ok {
		return nil
	}

	present := make(map[string]bool, len(filters))
	for _, f := range filters {
		present[f] = true
	}

	var out []string
	for _, f := range known {
		if !present[f] {
			out = append(out, fmt.Sprintf("Consider filtering by %s for better performance", f))
		}
	}
	return out
}
