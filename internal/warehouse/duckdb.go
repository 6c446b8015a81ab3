package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// DuckDB opens a local database file in read-only access mode. The driver
// rejects read-only transaction options, so the access mode is the only
// guard at this layer.
type DuckDB struct {
	path string
}

func NewDuckDB(path string) *DuckDB {
	return &DuckDB{path: strings.TrimSpace(path)}
}

func (d *DuckDB) Name() string { return "duckdb" }

func (d *DuckDB) DSN() string {
	return d.path + "?access_mode=READ_ONLY"
}

func (d *DuckDB) Open(ctx context.Context) (*sql.DB, error) {
	if d.path == "" {
		return nil, fmt.Errorf("duckdb path is required")
	}
	db, err := sql.Open("duckdb", d.DSN())
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb %s: %w", d.path, err)
	}
	return db, nil
}

func (d *DuckDB) TxOptions() *sql.TxOptions { return nil }
