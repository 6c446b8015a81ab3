package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/summary"
	"github.com/sqlagent/sqlagent/internal/warehouse"
)

// retrieveContext never fails; a schema that cannot be loaded leaves the
// context empty.
func (p *Pipeline) retrieveContext(ctx context.Context, _ State) (Patch, error) {
	patch := Patch{TableContext: Set(""), History: []string{msgRetrievedContext}}
	if p.Schemas == nil {
		return patch, nil
	}

	desc, err := p.Schemas.Load(ctx)
	if err != nil {
		p.Logger.ErrorContext(ctx, "schema load failed", append(observability.RequestAttrs(ctx), slog.Any("error", err))...)
		return patch, nil
	}
	rendered, err := desc.Render()
	if err != nil {
		p.Logger.ErrorContext(ctx, "schema render failed", append(observability.RequestAttrs(ctx), slog.Any("error", err))...)
		return patch, nil
	}
	patch.TableContext = Set(rendered)
	return patch, nil
}

// generateQuery requires user input. A failed generation yields an empty
// query, which the next stage rejects.
func (p *Pipeline) generateQuery(ctx context.Context, state State) (Patch, error) {
	if strings.TrimSpace(state.UserInput) == "" {
		return Patch{}, ErrMissingInput
	}
	patch := Patch{SQLQuery: Set(""), History: []string{msgGeneratedQuery}}
	if p.Translator == nil {
		p.Logger.ErrorContext(ctx, "sql generation skipped: no translator configured", observability.RequestAttrs(ctx)...)
		observability.IncGenerationFailure()
		return patch, nil
	}

	result, err := p.Translator.Translate(ctx, nl2sql.Request{
		Question: state.UserInput,
		Schema:   state.TableContext,
	})
	if err != nil {
		p.Logger.ErrorContext(ctx, "sql generation failed", append(observability.RequestAttrs(ctx), slog.Any("error", err))...)
		observability.IncGenerationFailure()
		return patch, nil
	}
	p.Logger.DebugContext(ctx, "sql generated",
		append(observability.RequestAttrs(ctx),
			slog.String("provider", result.Provider),
			slog.String("model", result.Model),
			slog.String("sql", result.SQL),
		)...,
	)
	patch.SQLQuery = Set(result.SQL)
	return patch, nil
}

// executeQuery requires a query. Rejections and database failures produce an
// empty result set with the cause recorded in QueryError.
func (p *Pipeline) executeQuery(ctx context.Context, state State) (Patch, error) {
	if strings.TrimSpace(state.SQLQuery) == "" {
		return Patch{}, ErrMissingQuery
	}
	patch := Patch{
		QueryResults: Set([]warehouse.Row{}),
		QueryError:   Set(""),
		History:      []string{msgExecutedQuery},
	}
	if p.Executor == nil {
		patch.QueryError = Set("warehouse executor is not configured")
		observability.IncQueryError()
		return patch, nil
	}

	result, err := p.Executor.Execute(ctx, state.SQLQuery)
	if err != nil {
		if errors.Is(err, warehouse.ErrRejectedQuery) {
			observability.IncQueryRejected()
			p.Logger.WarnContext(ctx, "query rejected", append(observability.RequestAttrs(ctx), slog.Any("error", err))...)
		} else {
			observability.IncQueryError()
			p.Logger.ErrorContext(ctx, "query failed", append(observability.RequestAttrs(ctx), slog.Any("error", err))...)
		}
		patch.QueryError = Set(err.Error())
		return patch, nil
	}

	rows := result.Rows
	if rows == nil {
		rows = []warehouse.Row{}
	}
	observability.ObserveQueryRows(len(rows))
	patch.QueryResults = Set(rows)
	return patch, nil
}

func (p *Pipeline) synthesizeResponse(_ context.Context, state State) (Patch, error) {
	return Patch{
		FinalResponse: Set(summary.Summarize(state.UserInput, state.QueryResults)),
		History:       []string{msgSummarized},
	}, nil
}
