// Package summary turns query results into the reply shown to the user.
package summary

import (
	"encoding/json"
	"fmt"

	"github.com/sqlagent/sqlagent/internal/warehouse"
)

// PreviewRows is the maximum number of rows quoted in a summary.
const PreviewRows = 3

// Summarize describes rows in the context of question. It never fails.
func Summarize(question string, rows []warehouse.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("I ran the requested analysis: '%s'. No rows were returned for the given filters.", question)
	}

	noun := "rows"
	if len(rows) == 1 {
		noun = "row"
	}
	return fmt.Sprintf("Answer to '%s':\n- Returned %d %s.\n- Sample rows: %s", question, len(rows), noun, Preview(rows))
}

// Preview renders up to PreviewRows rows as a JSON array.
func Preview(rows []warehouse.Row) string {
	if len(rows) > PreviewRows {
		rows = rows[:PreviewRows]
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprintf("%v", rowsAsMaps(rows))
	}
	return string(encoded)
}

func rowsAsMaps(rows []warehouse.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Map())
	}
	return out
}
