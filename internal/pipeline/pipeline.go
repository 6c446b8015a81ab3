// Package pipeline runs the four fixed stages that answer a question:
// retrieve schema context, generate SQL, execute it, and summarize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/schema"
	"github.com/sqlagent/sqlagent/internal/warehouse"
)

var (
	ErrMissingInput = errors.New("user input must be provided before generating a query")
	ErrMissingQuery = errors.New("sql query must be populated before executing it")
)

const (
	StageRetrieveContext    = "retrieve_context"
	StageGenerateQuery      = "generate_query"
	StageExecuteQuery       = "execute_query"
	StageSynthesizeResponse = "synthesize_response"
)

const (
	msgRetrievedContext = "Retrieved database schema context for downstream use."
	msgGeneratedQuery   = "Generated SQL query from the latest user request."
	msgExecutedQuery    = "Executed SQL query and stored the raw results."
	msgSummarized       = "Summarized SQL results and produced the final response."
)

type SchemaSource interface {
	Load(ctx context.Context) (schema.Description, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (warehouse.Result, error)
}

type Stage struct {
	Name string
	Run  func(ctx context.Context, state State) (Patch, error)
}

type Pipeline struct {
	Schemas    SchemaSource
	Translator nl2sql.Translator
	Executor   QueryExecutor
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return []Stage{
		{Name: StageRetrieveContext, Run: p.retrieveContext},
		{Name: StageGenerateQuery, Run: p.generateQuery},
		{Name: StageExecuteQuery, Run: p.executeQuery},
		{Name: StageSynthesizeResponse, Run: p.synthesizeResponse},
	}
}

// Run executes every stage in order. When a stage aborts, the state reached
// so far is returned together with the error, wrapped with the stage name.
func (p *Pipeline) Run(ctx context.Context, input string) (State, error) {
	p.ensureDefaults()
	start := p.Clock()
	state := State{UserInput: input, History: []string{}}

	for _, stage := range p.Stages() {
		if err := ctx.Err(); err != nil {
			observability.ObservePipelineRun(observability.OutcomeFailed, p.Clock().Sub(start))
			return state, fmt.Errorf("%s: %w", stage.Name, err)
		}

		stageStart := p.Clock()
		patch, err := stage.Run(ctx, state)
		observability.ObserveStage(stage.Name, p.Clock().Sub(stageStart))
		if err != nil {
			p.Logger.WarnContext(ctx, "pipeline aborted",
				append(observability.RequestAttrs(ctx),
					slog.String("stage", stage.Name),
					slog.Any("error", err),
				)...,
			)
			observability.ObservePipelineRun(observability.OutcomeAborted, p.Clock().Sub(start))
			return state, fmt.Errorf("%s: %w", stage.Name, err)
		}
		state = Merge(state, patch)
	}

	elapsed := p.Clock().Sub(start)
	observability.ObservePipelineRun(observability.OutcomeSuccess, elapsed)
	p.Logger.InfoContext(ctx, "pipeline completed",
		append(observability.RequestAttrs(ctx),
			slog.Int("rows", len(state.QueryResults)),
			slog.Bool("query_error", state.QueryError != ""),
			slog.String("duration", elapsed.String()),
		)...,
	)
	return state, nil
}

func (p *Pipeline) ensureDefaults() {
	if p.Logger == nil {
		p.Logger = observability.DiscardLogger()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
}
