// Package gaql statically validates queries written in the restricted
// Google Ads query grammar:
//
//	SELECT <fields> FROM <resource> [WHERE <conditions>]
//	    [ORDER BY <field> [ASC|DESC]] [LIMIT <n>]
//
// All functions are pure; no query is ever executed here.
package gaql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Complexity is a coarse query weight class.
type Complexity string

const (
	Simple      Complexity = "simple"
	Moderate    Complexity = "moderate"
	Complex     Complexity = "complex"
	VeryComplex Complexity = "very_complex"
)

// rank orders complexity levels for comparison.
func (c Complexity) rank() int {
	switch c {
	case Moderate:
		return 1
	case Complex:
		return 2
	case VeryComplex:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether c is the same or a higher level than other.
func (c Complexity) AtLeast(other Complexity) bool {
	return c.rank() >= other.rank()
}

// Resources is the closed allow-list of queryable resource names.
var Resources = map[string]bool{
	"customer": true, "campaign": true, "ad_group": true, "ad_group_ad": true,
	"ad_group_criterion": true, "keyword_view": true, "search_term_view": true,
	"campaign_criterion": true, "recommendation": true, "customer_client": true,
	"bidding_strategy": true, "campaign_budget": true, "ad_group_audience_view": true,
	"audience": true, "user_list": true, "conversion_action": true, "asset": true,
	"campaign_asset": true, "ad_group_asset": true, "extension_feed_item": true,
	"geographic_view": true, "age_range_view": true, "gender_view": true,
	"landing_page_view": true, "shopping_performance_view": true,
}

// MetricsFields are frequently-changing metric fields; queries selecting
// them should carry a bounded date filter.
var MetricsFields = map[string]bool{
	"metrics.clicks": true, "metrics.impressions": true, "metrics.cost_micros": true,
	"metrics.conversions": true, "metrics.conversions_value": true,
	"metrics.average_cpc": true, "metrics.average_cpm": true, "metrics.ctr": true,
	"metrics.conversion_rate": true, "metrics.cost_per_conversion": true,
	"metrics.all_conversions": true, "metrics.interactions": true,
	"metrics.engagement_rate": true, "metrics.video_views": true,
}

var (
	reSelect       = regexp.MustCompile(`(?i)\bSELECT\b`)
	reFrom         = regexp.MustCompile(`(?i)\bFROM\b`)
	reSelectFrom   = regexp.MustCompile(`(?i)\bSELECT\s+FROM\b`)
	reFromNoRes    = regexp.MustCompile(`(?i)\bFROM\s+(WHERE|ORDER|LIMIT)\b`)
	reFromResource = regexp.MustCompile(`(?i)\bFROM\s+(\w+)`)
	reSelectClause = regexp.MustCompile(`(?is)\bSELECT\s+(.*?)\s+FROM\b`)
	reWhere        = regexp.MustCompile(`(?i)\bWHERE\b`)
	reAnd          = regexp.MustCompile(`(?i)\bAND\b`)
	reOr           = regexp.MustCompile(`(?i)\bOR\b`)
	reSegments     = regexp.MustCompile(`(?i)\bsegments\.\w+`)
	reOrderBy      = regexp.MustCompile(`(?i)\bORDER BY\b`)
	reLimit        = regexp.MustCompile(`(?i)\bLIMIT\b`)
	reDateFilter   = regexp.MustCompile(`(?i)(DURING|segments\.date)`)
	reAggregation  = regexp.MustCompile(`(?i)\b(SUM|COUNT|AVG|MAX|MIN)\s*\(`)
)

// Complexity score weights and thresholds. These are heuristics carried
// over from operational experience, not a calibrated cost model; tune
// them rather than treating them as physical constants.
const (
	weightManyFields     = 3 // more than 20 selected fields
	weightSomeFields     = 2 // more than 10
	weightFewFields      = 1 // more than 5
	weightWhere          = 1
	weightManyConditions = 2 // more than 5 AND/OR connectives
	weightSomeConditions = 1 // more than 2
	weightSegmentation   = 1
	weightOrderBy        = 1

	thresholdModerate    = 3
	thresholdComplex     = 5
	thresholdVeryComplex = 7
)

// ValidateSyntax checks the query against the restricted grammar.
// It returns false plus one message per violation found.
func ValidateSyntax(query string) (bool, []string) {
	var errs []string

	if strings.TrimSpace(query) == "" {
		return false, []string{"query cannot be empty"}
	}

	if !reSelect.MatchString(query) {
		errs = append(errs, "query must contain SELECT clause")
	}
	if !reFrom.MatchString(query) {
		errs = append(errs, "query must contain FROM clause")
	}
	if strings.Count(query, "(") != strings.Count(query, ")") {
		errs = append(errs, "unbalanced parentheses in query")
	}
	if reSelectFrom.MatchString(query) {
		errs = append(errs, "SELECT clause cannot be empty")
	}
	if reFromNoRes.MatchString(query) {
		errs = append(errs, "FROM clause must specify a resource")
	}

	// Unescaped quotes must pair up.
	if (strings.Count(query, "'")-strings.Count(query, `\'`))%2 != 0 {
		errs = append(errs, "unterminated string (single quote)")
	}
	if (strings.Count(query, `"`)-strings.Count(query, `\"`))%2 != 0 {
		errs = append(errs, "unterminated string (double quote)")
	}

	return len(errs) == 0, errs
}

// ExtractResource returns the resource named in the FROM clause,
// lowercased, or "" when no resource is present.
func ExtractResource(query string) string {
	m := reFromResource.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// ExtractFields returns the SELECT list, split on top-level commas only.
// Commas nested inside parentheses (function calls) do not split.
func ExtractFields(query string) []string {
	m := reSelectClause.FindStringSubmatch(query)
	if m == nil {
		return nil
	}

	var fields []string
	var cur strings.Builder
	depth := 0

	for _, ch := range m[1] {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if f := strings.TrimSpace(cur.String()); f != "" {
					fields = append(fields, f)
				}
				cur.Reset()
				continue
			}
		}
		cur.WriteRune(ch)
	}
	if f := strings.TrimSpace(cur.String()); f != "" {
		fields = append(fields, f)
	}

	return fields
}

// ValidateResource checks resource against the allow-list. The error
// message names the offending resource and the full allow-list so the
// caller can self-correct.
func ValidateResource(resource string) (bool, string) {
	if resource == "" {
		return false, "no resource specified"
	}
	if !Resources[strings.ToLower(resource)] {
		names := make([]string, 0, len(Resources))
		for r := range Resources {
			names = append(names, r)
		}
		sort.Strings(names)
		return false, fmt.Sprintf("invalid resource: %s. Must be one of: %s",
			resource, strings.Join(names, ", "))
	}
	return true, ""
}

// ComplexityScore accumulates the weighted complexity score for query.
// Adding fields, WHERE conditions or ORDER BY never decreases it.
func ComplexityScore(query string) int {
	score := 0

	switch n := len(ExtractFields(query)); {
	case n > 20:
		score += weightManyFields
	case n > 10:
		score += weightSomeFields
	case n > 5:
		score += weightFewFields
	}

	if reWhere.MatchString(query) {
		score += weightWhere

		conditions := len(reAnd.FindAllString(query, -1)) + len(reOr.FindAllString(query, -1))
		switch {
		case conditions > 5:
			score += weightManyConditions
		case conditions > 2:
			score += weightSomeConditions
		}
	}

	if reSegments.MatchString(query) {
		score += weightSegmentation
	}
	if reOrderBy.MatchString(query) {
		score += weightOrderBy
	}

	return score
}

// AnalyzeComplexity maps the complexity score onto the four levels.
func AnalyzeComplexity(query string) Complexity {
	score := ComplexityScore(query)
	switch {
	case score >= thresholdVeryComplex:
		return VeryComplex
	case score >= thresholdComplex:
		return Complex
	case score >= thresholdModerate:
		return Moderate
	default:
		return Simple
	}
}

// HasDateFilter reports whether the query bounds its data by date.
func HasDateFilter(query string) bool {
	return reDateFilter.MatchString(query)
}

// HasLimit reports whether the query has a row-limiting clause.
func HasLimit(query string) bool {
	return reLimit.MatchString(query)
}

// HasAggregation reports whether the query uses an aggregate function.
func HasAggregation(query string) bool {
	return reAggregation.MatchString(query)
}

// HasSegmentation reports whether the query selects a segment field.
func HasSegmentation(query string) bool {
	return reSegments.MatchString(query)
}
