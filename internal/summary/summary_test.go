package summary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/sqlagent/sqlagent/internal/warehouse"
)

func productRows(n int) []warehouse.Row {
	rows := make([]warehouse.Row, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, warehouse.NewRow(
			[]string{"id", "name", "category"},
			[]any{i, fmt.Sprintf("Product %d", i), "Electronics"},
		))
	}
	return rows
}

func TestSummarizeNoRows(t *testing.T) {
	t.Parallel()

	question := "Which suppliers are in City Z?"
	for _, rows := range [][]warehouse.Row{nil, {}} {
		got := Summarize(question, rows)
		if got != "I ran the requested analysis: 'Which suppliers are in City Z?'. No rows were returned for the given filters." {
			t.Fatalf("Summarize() = %q", got)
		}
		if regexp.MustCompile(`\d`).MatchString(got) {
			t.Fatalf("no row count expected: %q", got)
		}
	}
}

func TestSummarizeRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rows      int
		wantCount string
		preview   int
	}{
		{name: "single row", rows: 1, wantCount: "- Returned 1 row.", preview: 1},
		{name: "three rows", rows: 3, wantCount: "- Returned 3 rows.", preview: 3},
		{name: "many rows", rows: 12, wantCount: "- Returned 12 rows.", preview: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Summarize("Show me all products in the Electronics category", productRows(tt.rows))
			lines := strings.Split(got, "\n")
			if len(lines) != 3 {
				t.Fatalf("Summarize() lines = %d: %q", len(lines), got)
			}
			if lines[0] != "Answer to 'Show me all products in the Electronics category':" {
				t.Fatalf("header = %q", lines[0])
			}
			if lines[1] != tt.wantCount {
				t.Fatalf("count line = %q, want %q", lines[1], tt.wantCount)
			}

			raw := strings.TrimPrefix(lines[2], "- Sample rows: ")
			var preview []map[string]any
			if err := json.Unmarshal([]byte(raw), &preview); err != nil {
				t.Fatalf("preview decode failed: %v", err)
			}
			if len(preview) != tt.preview {
				t.Fatalf("preview rows = %d, want %d", len(preview), tt.preview)
			}
		})
	}
}

func TestPreviewKeepsColumnOrder(t *testing.T) {
	t.Parallel()

	rows := []warehouse.Row{warehouse.NewRow([]string{"total_profit", "product"}, []any{42.5, "Product A"})}
	if got := Preview(rows); got != `[{"total_profit":42.5,"product":"Product A"}]` {
		t.Fatalf("Preview() = %s", got)
	}
}
