package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlagent/sqlagent/internal/config"
	"github.com/sqlagent/sqlagent/internal/migrations"
	"github.com/sqlagent/sqlagent/internal/warehouse"
)

func main() {
	target := flag.String("target", migrations.TargetWarehouse, "migration set: "+strings.Join(migrations.Targets(), "|"))
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	dsnFlag := flag.String("dsn", "", "database DSN; defaults to the configured DSN for the target")
	flag.Parse()

	if err := config.LoadDotEnv("."); err != nil {
		fmt.Fprintf(os.Stderr, "dotenv error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("sqlagent-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	runner, err := migrations.NewRunner(*target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	dsn := strings.TrimSpace(*dsnFlag)
	if dsn == "" {
		dsn = targetDSN(cfg, *target)
	}
	if dsn == "" {
		fmt.Fprintf(os.Stderr, "no DSN configured for target %s; set -dsn\n", *target)
		os.Exit(1)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "database ping error: %v\n", err)
		os.Exit(1)
	}

	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d %s migration(s)\n", applied, *target)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d %s migration(s)\n", applied, *target)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		for _, status := range statuses {
			state := "pending"
			if status.Applied {
				state = "applied"
			}
			fmt.Printf("%06d %-24s %s\n", status.Version, status.Name, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}

// targetDSN picks the configured database for a migration set. The warehouse
// set uses the same connection settings as the read-only executor.
func targetDSN(cfg config.Config, target string) string {
	switch target {
	case migrations.TargetSessions:
		return cfg.Sessions.DSN
	case migrations.TargetWarehouse:
		if cfg.Warehouse.Driver != config.WarehouseDriverPostgres {
			return ""
		}
		return warehouse.PostgresConfig{
			Host:     cfg.Warehouse.Host,
			Port:     cfg.Warehouse.Port,
			Database: cfg.Warehouse.Database,
			User:     cfg.Warehouse.User,
			Password: cfg.Warehouse.Password,
			SSLMode:  cfg.Warehouse.SSLMode,
			DSN:      cfg.Warehouse.DSN,
		}.ConnString()
	}
	return ""
}
