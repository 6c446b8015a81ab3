package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sqlagent/sqlagent/internal/warehouse"
)

func TestListTablesIncludesColumns(t *testing.T) {
	h := NewHandler(loadTestConfig(t), Dependencies{Schemas: staticSchemas{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Tables []struct {
			TableName string         `json:"table_name"`
			Columns   map[string]any `json:"columns"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(body.Tables) != 4 || body.Tables[0].TableName != "products" {
		t.Fatalf("tables = %+v", body.Tables)
	}
	if len(body.Tables[0].Columns) == 0 {
		t.Fatal("expected products columns")
	}
}

func TestTableRowsRunsBoundedSelect(t *testing.T) {
	exec := &fakeExecutor{result: warehouse.Result{
		Columns: []string{"id", "name"},
		Rows:    []warehouse.Row{warehouse.NewRow([]string{"id", "name"}, []any{int64(1), "Laptop"})},
	}}
	h := NewHandler(loadTestConfig(t), Dependencies{Schemas: staticSchemas{}, Warehouse: exec})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables/products?limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if exec.lastSQL != `SELECT * FROM "products" LIMIT 5` {
		t.Fatalf("sql = %q", exec.lastSQL)
	}
	var body struct {
		Table    string           `json:"table"`
		Limit    int              `json:"limit"`
		Columns  []string         `json:"columns"`
		Rows     []map[string]any `json:"rows"`
		RowCount int              `json:"row_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.Table != "products" || body.Limit != 5 || body.RowCount != 1 || body.Rows[0]["name"] != "Laptop" {
		t.Fatalf("body = %+v", body)
	}
}

func TestTableRowsLimitDefaultsAndCaps(t *testing.T) {
	exec := &fakeExecutor{}
	h := NewHandler(loadTestConfig(t), Dependencies{Schemas: staticSchemas{}, Warehouse: exec})

	cases := map[string]string{
		"/v1/tables/sales":            `SELECT * FROM "sales" LIMIT 20`,
		"/v1/tables/sales?limit=9999": `SELECT * FROM "sales" LIMIT 500`,
	}
	for target, want := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", target, rr.Code)
		}
		if exec.lastSQL != want {
			t.Fatalf("%s sql = %q, want %q", target, exec.lastSQL, want)
		}
	}
}

func TestTableRowsErrors(t *testing.T) {
	cases := []struct {
		name   string
		deps   Dependencies
		target string
		status int
		code   string
	}{
		{name: "not configured", deps: Dependencies{Schemas: staticSchemas{}}, target: "/v1/tables/products", status: http.StatusNotImplemented, code: "TABLES_NOT_CONFIGURED"},
		{name: "bad identifier", deps: Dependencies{Schemas: staticSchemas{}, Warehouse: &fakeExecutor{}}, target: "/v1/tables/products%22%3Bx", status: http.StatusBadRequest, code: "INVALID_TABLE"},
		{name: "bad limit", deps: Dependencies{Schemas: staticSchemas{}, Warehouse: &fakeExecutor{}}, target: "/v1/tables/products?limit=-1", status: http.StatusBadRequest, code: "INVALID_LIMIT"},
		{name: "unknown table", deps: Dependencies{Schemas: staticSchemas{}, Warehouse: &fakeExecutor{}}, target: "/v1/tables/pg_user", status: http.StatusNotFound, code: "TABLE_NOT_FOUND"},
		{name: "non-table key", deps: Dependencies{Schemas: staticSchemas{}, Warehouse: &fakeExecutor{}}, target: "/v1/tables/relationships", status: http.StatusNotFound, code: "TABLE_NOT_FOUND"},
		{name: "warehouse down", deps: Dependencies{Schemas: staticSchemas{}, Warehouse: &fakeExecutor{err: &warehouse.DatabaseError{Op: "open", Err: errors.New("refused")}}}, target: "/v1/tables/products", status: http.StatusBadGateway, code: "WAREHOUSE_QUERY_FAILED"},
		{name: "rejected", deps: Dependencies{Schemas: staticSchemas{}, Warehouse: &fakeExecutor{err: fmt.Errorf("%w: not select", warehouse.ErrRejectedQuery)}}, target: "/v1/tables/products", status: http.StatusInternalServerError, code: "QUERY_REJECTED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(loadTestConfig(t), tc.deps)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", rr.Code, tc.status, rr.Body.String())
			}
			if body := decodeError(t, rr); body["error_code"] != tc.code {
				t.Fatalf("body = %#v", body)
			}
		})
	}
}
