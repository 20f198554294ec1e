package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestAnalyzeQuery_Valid(t *testing.T) {
	o := NewOptimizer()

	res := o.AnalyzeQuery("SELECT campaign.id, campaign.name FROM campaign WHERE segments.date DURING LAST_30_DAYS LIMIT 100")
	if !res.IsValid {
		t.Fatalf("Expected valid query, errors: %v", res.Errors)
	}
	if res.FieldCount != 2 {
		t.Errorf("Expected 2 fields, got %d", res.FieldCount)
	}
	if res.Complexity != ComplexitySimple {
		t.Errorf("Expected simple complexity, got %s", res.Complexity)
	}
}

func TestAnalyzeQuery_MetricsWithoutDateRange(t *testing.T) {
	o := NewOptimizer()

	res := o.AnalyzeQuery("SELECT metrics.clicks FROM campaign LIMIT 10")
	if !res.IsValid {
		t.Fatalf("Expected valid query, errors: %v", res.Errors)
	}
	if !containsSubstring(res.Warnings, "no date range") {
		t.Errorf("Expected date range warning, got %v", res.Warnings)
	}

	// With a date filter the warning disappears.
	res = o.AnalyzeQuery("SELECT metrics.clicks FROM campaign WHERE segments.date DURING LAST_7_DAYS LIMIT 10")
	if containsSubstring(res.Warnings, "no date range") {
		t.Errorf("Expected no date range warning, got %v", res.Warnings)
	}
}

func TestAnalyzeQuery_Wildcard(t *testing.T) {
	o := NewOptimizer()

	res := o.AnalyzeQuery("SELECT * FROM campaign LIMIT 10")
	if !containsSubstring(res.Warnings, "SELECT *") {
		t.Errorf("Expected wildcard warning, got %v", res.Warnings)
	}
	if !containsSubstring(res.Suggestions, "specific fields") {
		t.Errorf("Expected wildcard suggestion, got %v", res.Suggestions)
	}
}

func TestAnalyzeQuery_FieldCeilings(t *testing.T) {
	o := NewOptimizer()

	// 25 fields warn, 35 fields error.
	res := o.AnalyzeQuery(queryWithFields(25))
	if !res.IsValid {
		t.Fatalf("Expected 25-field query valid, errors: %v", res.Errors)
	}
	if !containsSubstring(res.Warnings, "25 fields") {
		t.Errorf("Expected field count warning, got %v", res.Warnings)
	}

	res = o.AnalyzeQuery(queryWithFields(35))
	if res.IsValid {
		t.Fatal("Expected 35-field query invalid")
	}
	if !containsSubstring(res.Errors, "exceeds the API limit") {
		t.Errorf("Expected field limit error, got %v", res.Errors)
	}
	// The hard error must not also trigger the soft warning.
	if containsSubstring(res.Warnings, "Consider reducing") {
		t.Errorf("Expected no soft warning alongside the limit error, got %v", res.Warnings)
	}
}

func TestAnalyzeQuery_MissingLimit(t *testing.T) {
	o := NewOptimizer()

	res := o.AnalyzeQuery("SELECT campaign.id FROM campaign")
	if !containsSubstring(res.Suggestions, "LIMIT") {
		t.Errorf("Expected LIMIT suggestion, got %v", res.Suggestions)
	}

	res = o.AnalyzeQuery("SELECT campaign.id FROM campaign LIMIT 50")
	if containsSubstring(res.Suggestions, "Add LIMIT") {
		t.Errorf("Expected no LIMIT suggestion, got %v", res.Suggestions)
	}
}

func TestAnalyzeQuery_InvalidResource(t *testing.T) {
	o := NewOptimizer()

	res := o.AnalyzeQuery("SELECT x.id FROM not_a_real_resource LIMIT 1")
	if res.IsValid {
		t.Fatal("Expected invalid query")
	}
	if !containsSubstring(res.Errors, "invalid resource: not_a_real_resource") {
		t.Errorf("Expected resource error, got %v", res.Errors)
	}
}

func TestAnalyzeQuery_ResourceHeuristics(t *testing.T) {
	o := NewOptimizer()

	res := o.AnalyzeQuery("SELECT search_term_view.search_term FROM search_term_view LIMIT 10")
	if !containsSubstring(res.Warnings, "search_term_view queries should always include a date range") {
		t.Errorf("Expected search_term_view warning, got %v", res.Warnings)
	}

	res = o.AnalyzeQuery("SELECT keyword_view.resource_name FROM keyword_view LIMIT 10")
	if !containsSubstring(res.Suggestions, "keyword performance data") {
		t.Errorf("Expected keyword_view suggestion, got %v", res.Suggestions)
	}
}

func TestOptimizeQuery_AppendsLimit(t *testing.T) {
	o := NewOptimizer()

	out := o.OptimizeQuery("SELECT campaign.id FROM campaign")
	if !strings.Contains(out, "LIMIT 1000") {
		t.Errorf("Expected default limit appended, got: %s", out)
	}

	out = o.OptimizeQuery("SELECT campaign.id FROM campaign LIMIT 5")
	if strings.Contains(out, "1000") {
		t.Errorf("Expected existing limit kept, got: %s", out)
	}
}

func TestOptimizeQuery_Formats(t *testing.T) {
	o := NewOptimizer()

	out := o.OptimizeQuery("SELECT campaign.id FROM campaign WHERE campaign.status = 'ENABLED' ORDER BY campaign.id LIMIT 10")
	want := "SELECT campaign.id\nFROM campaign\nWHERE campaign.status = 'ENABLED'\nORDER BY campaign.id\nLIMIT 10"
	if out != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, out)
	}
}

func TestOptimizeQuery_Idempotent(t *testing.T) {
	o := NewOptimizer()

	once := o.OptimizeQuery("SELECT campaign.id FROM campaign WHERE campaign.status = 'ENABLED'")
	twice := o.OptimizeQuery(once)
	if once != twice {
		t.Errorf("Expected idempotent rewrite:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestSuggestIndexes(t *testing.T) {
	o := NewOptimizer()

	out := o.SuggestIndexes("campaign", nil)
	if len(out) != 3 {
		t.Fatalf("Expected 3 suggestions, got %d: %v", len(out), out)
	}

	// Filters already applied are not suggested again.
	out = o.SuggestIndexes("campaign", []string{"campaign.id", "segments.date"})
	if len(out) != 1 {
		t.Fatalf("Expected 1 suggestion, got %d: %v", len(out), out)
	}
	if !strings.Contains(out[0], "campaign.status") {
		t.Errorf("Expected campaign.status suggestion, got %q", out[0])
	}

	if out := o.SuggestIndexes("geographic_view", nil); out != nil {
		t.Errorf("Expected nil for unmapped resource, got %v", out)
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func queryWithFields(n int) string {
	fields := make([]string, n)
	for i := range fields {
		fields[i] = fmt.Sprintf("campaign.field_%d", i)
	}
	return "SELECT " + strings.Join(fields, ", ") + " FROM campaign LIMIT 10"
}
