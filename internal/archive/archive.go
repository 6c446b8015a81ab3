// Package archive writes each pipeline run to the object store as a
// single-row parquet file.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/pipeline"
	"github.com/sqlagent/sqlagent/internal/storage"
)

const contentType = "application/vnd.apache.parquet"

// Record is the parquet row layout of an archived run.
type Record struct {
	RunID          string `parquet:"run_id"`
	SessionID      string `parquet:"session_id"`
	Question       string `parquet:"question"`
	SQLQuery       string `parquet:"sql_query"`
	RowCount       int64  `parquet:"row_count"`
	ResultsJSON    string `parquet:"results_json"`
	FinalResponse  string `parquet:"final_response"`
	HistoryJSON    string `parquet:"history_json"`
	QueryError     string `parquet:"query_error"`
	RunError       string `parquet:"run_error"`
	StartedUnixMs  int64  `parquet:"started_unix_ms"`
	FinishedUnixMs int64  `parquet:"finished_unix_ms"`
}

// Run is what the chat endpoint knows about one finished or aborted run.
type Run struct {
	SessionID string
	State     pipeline.State
	Err       error
	StartedAt time.Time
}

// NewRecord flattens run into a Record.
func NewRecord(runID string, run Run, finishedAt time.Time) (Record, error) {
	results, err := json.Marshal(run.State.QueryResults)
	if err != nil {
		return Record{}, fmt.Errorf("encode results: %w", err)
	}
	history, err := json.Marshal(run.State.History)
	if err != nil {
		return Record{}, fmt.Errorf("encode history: %w", err)
	}
	record := Record{
		RunID:          runID,
		SessionID:      run.SessionID,
		Question:       run.State.UserInput,
		SQLQuery:       run.State.SQLQuery,
		RowCount:       int64(len(run.State.QueryResults)),
		ResultsJSON:    string(results),
		FinalResponse:  run.State.FinalResponse,
		HistoryJSON:    string(history),
		QueryError:     run.State.QueryError,
		StartedUnixMs:  run.StartedAt.UnixMilli(),
		FinishedUnixMs: finishedAt.UnixMilli(),
	}
	if run.Err != nil {
		record.RunError = run.Err.Error()
	}
	return record, nil
}

// Encode writes records as parquet.
func Encode(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("records are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Record](buf)
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

type Archiver struct {
	Store  storage.ObjectStore
	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
}

func NewArchiver(store storage.ObjectStore, logger *slog.Logger) *Archiver {
	return &Archiver{Store: store, Logger: logger}
}

// Archive stores run and returns its object key. Failures are logged and
// counted before being returned; callers are free to ignore them.
func (a *Archiver) Archive(ctx context.Context, run Run) (string, error) {
	a.ensureDefaults()
	key, err := a.archive(ctx, run)
	if err != nil {
		observability.IncArchiveFailure()
		a.Logger.ErrorContext(ctx, "archive run failed",
			append(observability.RequestAttrs(ctx), slog.Any("error", err))...,
		)
		return "", err
	}
	a.Logger.DebugContext(ctx, "archived run",
		append(observability.RequestAttrs(ctx), slog.String("object_path", key))...,
	)
	return key, nil
}

func (a *Archiver) archive(ctx context.Context, run Run) (string, error) {
	if a.Store == nil {
		return "", fmt.Errorf("object store is not configured")
	}
	runID := a.NewID()
	key, err := storage.BuildRunArchivePath(runID, run.StartedAt)
	if err != nil {
		return "", err
	}
	record, err := NewRecord(runID, run, a.Clock())
	if err != nil {
		return "", err
	}
	data, err := Encode([]Record{record})
	if err != nil {
		return "", err
	}
	if _, err := a.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("archive run %s: %w", runID, err)
	}
	return key, nil
}

func (a *Archiver) ensureDefaults() {
	if a.Logger == nil {
		a.Logger = observability.DiscardLogger()
	}
	if a.Clock == nil {
		a.Clock = time.Now
	}
	if a.NewID == nil {
		a.NewID = func() string { return uuid.NewString() }
	}
}
