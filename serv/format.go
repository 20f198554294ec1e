package serv

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adtools/gaqlgate/core"
)

// maxResponseLength bounds tool output; MCP clients choke on
// multi-hundred-KB text blocks.
const maxResponseLength = 25000

const truncateMessage = "\n\n... (Response truncated. Use filters to reduce data size.)"

// ToMarkdown renders rows as a markdown table. Columns defaults to the
// sorted union of all row keys when nil.
func ToMarkdown(data []core.Row, title string, columns []string) string {
	if len(data) == 0 {
		return fmt.Sprintf("# %s\n\nNo results found.", title)
	}

	if columns == nil {
		keys := make(map[string]bool)
		for _, row := range data {
			for k := range row {
				keys[k] = true
			}
		}
		columns = make([]string, 0, len(keys))
		for k := range keys {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")

	for _, row := range data {
		values := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok {
				values[i] = fmt.Sprintf("%v", v)
			}
		}
		b.WriteString("| " + strings.Join(values, " | ") + " |\n")
	}

	fmt.Fprintf(&b, "\n**Total Results:** %d", len(data))
	return b.String()
}

// ToSummary renders a record count plus aggregate statistics for each
// named metric field. Non-numeric values are skipped.
func ToSummary(data []core.Row, title string, metricFields []string) string {
	if len(data) == 0 {
		return fmt.Sprintf("# %s\n\nNo data available.", title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Total Records:** %d\n", len(data))

	if len(metricFields) > 0 {
		b.WriteString("\n## Metrics\n")

		for _, field := range metricFields {
			var values []float64
			for _, row := range data {
				if v, ok := numericValue(row[field]); ok {
					values = append(values, v)
				}
			}
			if len(values) == 0 {
				continue
			}

			total, min, max := values[0], values[0], values[0]
			for _, v := range values[1:] {
				total += v
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}

			fmt.Fprintf(&b, "\n### %s\n", field)
			fmt.Fprintf(&b, "- **Total:** %.2f\n", total)
			fmt.Fprintf(&b, "- **Average:** %.2f\n", total/float64(len(values)))
			fmt.Fprintf(&b, "- **Max:** %.2f\n", max)
			fmt.Fprintf(&b, "- **Min:** %.2f\n", min)
		}
	}

	return b.String()
}

// Truncate caps text at maxResponseLength, replacing the tail with a
// hint to narrow the query.
func Truncate(text string) string {
	return TruncateAt(text, maxResponseLength)
}

// TruncateAt caps text at maxLength.
func TruncateAt(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	cut := maxLength - len(truncateMessage)
	if cut < 0 {
		cut = 0
	}
	// Never cut inside a multi-byte rune.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncateMessage
}

// numericValue coerces JSON-decoded numbers to float64.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
