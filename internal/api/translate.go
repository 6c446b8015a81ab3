package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/schema"
	"github.com/sqlagent/sqlagent/internal/sqlguard"
)

type translateRequest struct {
	Question string `json:"question"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	desc, err := deps.Schemas.Load(r.Context())
	if err != nil {
		writeSchemaError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": desc.Tables(),
		"schema": desc,
	})
}

// handleTranslateQuery returns generated SQL without executing it.
func handleTranslateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}

	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	desc, err := deps.Schemas.Load(r.Context())
	if err != nil {
		writeSchemaError(w, r, err)
		return
	}
	rendered, err := desc.Render()
	if err != nil {
		writeSchemaError(w, r, err)
		return
	}

	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		Question: req.Question,
		Schema:   rendered,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate query", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sql":       result.SQL,
		"provider":  result.Provider,
		"model":     result.Model,
		"read_only": sqlguard.IsReadOnly(result.SQL),
	})
}

func writeSchemaError(w http.ResponseWriter, r *http.Request, err error) {
	code := "SCHEMA_LOAD_FAILED"
	switch {
	case errors.Is(err, schema.ErrSchemaNotFound):
		code = "SCHEMA_NOT_FOUND"
	case errors.Is(err, schema.ErrSchemaMalformed):
		code = "SCHEMA_MALFORMED"
	}
	writeError(r.Context(), w, http.StatusInternalServerError, code, "failed to load schema description", false, map[string]any{"details": err.Error()})
}
