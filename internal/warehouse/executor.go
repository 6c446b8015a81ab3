// Package warehouse runs validated SELECT statements against the read-only
// warehouse and materializes the result rows.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/sqlagent/sqlagent/internal/sqlguard"
)

var ErrRejectedQuery = errors.New("query rejected by read-only check")

// DatabaseError wraps driver, connection and execution failures.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("warehouse %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Backend opens a fresh database handle for a single query.
type Backend interface {
	Name() string
	Open(ctx context.Context) (*sql.DB, error)
	// TxOptions returns the options for the query transaction. nil means the
	// driver default.
	TxOptions() *sql.TxOptions
}

type Result struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

type Executor struct {
	Backend Backend
}

func NewExecutor(backend Backend) *Executor {
	return &Executor{Backend: backend}
}

// Execute checks sqlText with sqlguard, then runs it as the only statement of
// a transaction that is always rolled back. The database handle is closed
// before Execute returns.
func (e *Executor) Execute(ctx context.Context, sqlText string) (result Result, err error) {
	if guardErr := sqlguard.Validate(sqlText); guardErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRejectedQuery, guardErr)
	}
	if e.Backend == nil {
		return Result{}, &DatabaseError{Op: "open", Err: errors.New("warehouse backend is not configured")}
	}

	start := time.Now()
	db, err := e.Backend.Open(ctx)
	if err != nil {
		return Result{}, &DatabaseError{Op: "open", Err: err}
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = &DatabaseError{Op: "close", Err: closeErr}
		}
	}()

	tx, err := db.BeginTx(ctx, e.Backend.TxOptions())
	if err != nil {
		return Result{}, &DatabaseError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stripTrailingSemicolons(sqlText))
	if err != nil {
		return Result{}, &DatabaseError{Op: "query", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, &DatabaseError{Op: "columns", Err: err}
	}

	resultRows := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, &DatabaseError{Op: "scan", Err: err}
		}
		resultRows = append(resultRows, NewRow(columns, normalizeValues(values)))
	}
	if err := rows.Err(); err != nil {
		return Result{}, &DatabaseError{Op: "iterate", Err: err}
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case duckdb.Decimal:
			normalized[i] = decimalNumber(typed)
		case *big.Int:
			if typed == nil {
				normalized[i] = nil
				continue
			}
			normalized[i] = json.Number(typed.String())
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// decimalNumber renders a DECIMAL exactly, keeping its declared scale.
func decimalNumber(d duckdb.Decimal) any {
	if d.Value == nil {
		return nil
	}
	if d.Scale == 0 {
		return json.Number(d.Value.String())
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return json.Number(new(big.Rat).SetFrac(d.Value, scale).FloatString(int(d.Scale)))
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
