package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adtools/gaqlgate/core"
)

var validateJSON bool

func validateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "validate <query>",
		Short: "Validate and analyze a query without executing it",
		Long: `Statically validate a Google Ads query: syntax, resource allow-list,
complexity rating, warnings and suggestions. The optimized rewrite is
printed alongside the analysis.

Exit codes:
  0 - Query is valid
  1 - Query has errors`,
		Args: cobra.MinimumNArgs(1),
		Run:  cmdValidate,
	}
	c.Flags().BoolVar(&validateJSON, "json", false, "Output results in JSON format")
	return c
}

// ValidateOutput is the validate command's JSON output
type ValidateOutput struct {
	Query          string             `json:"query"`
	Analysis       core.QueryAnalysis `json:"analysis"`
	OptimizedQuery string             `json:"optimized_query"`
}

func cmdValidate(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")

	opt := core.NewOptimizer()
	out := ValidateOutput{
		Query:          query,
		Analysis:       opt.AnalyzeQuery(query),
		OptimizedQuery: opt.OptimizeQuery(query),
	}

	if validateJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Fatalf("failed to encode result: %s", err)
		}
		fmt.Println(string(data))
	} else {
		printAnalysis(out)
	}

	if !out.Analysis.IsValid {
		os.Exit(1)
	}
}

func printAnalysis(out ValidateOutput) {
	a := out.Analysis

	if a.IsValid {
		fmt.Println("Query is valid.")
	} else {
		fmt.Println("Query is INVALID.")
	}

	fmt.Printf("Complexity: %s (%d fields)\n", a.Complexity, a.FieldCount)

	printList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Printf("\n%s:\n", label)
		for _, item := range items {
			fmt.Printf("  - %s\n", item)
		}
	}

	printList("Errors", a.Errors)
	printList("Warnings", a.Warnings)
	printList("Suggestions", a.Suggestions)

	fmt.Printf("\nOptimized query:\n%s\n", out.OptimizedQuery)
}
