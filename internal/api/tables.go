package api

import (
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sqlagent/sqlagent/internal/warehouse"
)

const (
	defaultTableRowLimit = 20
	maxTableRowLimit     = 500
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	desc, err := deps.Schemas.Load(r.Context())
	if err != nil {
		writeSchemaError(w, r, err)
		return
	}
	tables := desc.Tables()
	items := make([]map[string]any, 0, len(tables))
	for _, name := range tables {
		entry, _ := desc[name].(map[string]any)
		items = append(items, map[string]any{
			"table_name":  name,
			"description": entry["description"],
			"columns":     entry["columns"],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": items})
}

// handleTableRows previews rows of a table named in the schema description.
func handleTableRows(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Warehouse == nil || deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TABLES_NOT_CONFIGURED", "table browsing is not configured", false, nil)
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	if !tableNamePattern.MatchString(table) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TABLE", "table name must be a plain identifier", false, map[string]any{"table": table})
		return
	}
	limit, err := tableRowLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", err.Error(), false, nil)
		return
	}

	desc, err := deps.Schemas.Load(r.Context())
	if err != nil {
		writeSchemaError(w, r, err)
		return
	}
	if !slices.Contains(desc.Tables(), table) {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table is not described in the schema", false, map[string]any{"table": table})
		return
	}

	result, err := deps.Warehouse.Execute(r.Context(), `SELECT * FROM "`+table+`" LIMIT `+strconv.Itoa(limit))
	if err != nil {
		if errors.Is(err, warehouse.ErrRejectedQuery) {
			writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_REJECTED", "table query was rejected", false, map[string]any{"details": err.Error()})
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "WAREHOUSE_QUERY_FAILED", "failed to read table", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":     table,
		"limit":     limit,
		"columns":   result.Columns,
		"rows":      result.Rows,
		"row_count": len(result.Rows),
	})
}

func tableRowLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultTableRowLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxTableRowLimit {
		limit = maxTableRowLimit
	}
	return limit, nil
}
