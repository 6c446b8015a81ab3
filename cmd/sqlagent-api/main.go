package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlagent/sqlagent/internal/api"
	"github.com/sqlagent/sqlagent/internal/archive"
	"github.com/sqlagent/sqlagent/internal/config"
	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/pipeline"
	"github.com/sqlagent/sqlagent/internal/schema"
	"github.com/sqlagent/sqlagent/internal/session"
	sessionpostgres "github.com/sqlagent/sqlagent/internal/session/postgres"
	"github.com/sqlagent/sqlagent/internal/storage"
	s3store "github.com/sqlagent/sqlagent/internal/storage/s3"
	"github.com/sqlagent/sqlagent/internal/warehouse"
)

func main() {
	if err := config.LoadDotEnv("."); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("sqlagent-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	readiness := []api.ReadinessCheck{api.CheckWarehouseConfig(cfg)}

	var objects storage.ObjectStore
	if cfg.UsesObjectStore() {
		objectStore, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objects = objectStore
		readiness = append(readiness, api.CheckObjectStore(objectStore))
	}

	var sessions session.Store
	switch cfg.Sessions.Backend {
	case config.SessionBackendPostgres:
		sessionDB, err := sessionpostgres.Open(ctx, sessionpostgres.DBConfig{
			DSN:             cfg.Sessions.DSN,
			MaxOpenConns:    cfg.Sessions.MaxOpenConns,
			MaxIdleConns:    cfg.Sessions.MaxIdleConns,
			ConnMaxIdleTime: cfg.Sessions.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Sessions.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open sessions db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = sessionDB.Close() }()
		store := sessionpostgres.NewStore(sessionDB)
		sessions = store
		readiness = append(readiness, store.HealthCheck)
	default:
		sessions = session.NewMemoryStore()
	}

	var backend warehouse.Backend
	switch cfg.Warehouse.Driver {
	case config.WarehouseDriverDuckDB:
		backend = warehouse.NewDuckDB(cfg.Warehouse.DuckDBPath)
	default:
		backend = warehouse.NewPostgres(warehouse.PostgresConfig{
			Host:     cfg.Warehouse.Host,
			Port:     cfg.Warehouse.Port,
			Database: cfg.Warehouse.Database,
			User:     cfg.Warehouse.User,
			Password: cfg.Warehouse.Password,
			SSLMode:  cfg.Warehouse.SSLMode,
			DSN:      cfg.Warehouse.DSN,
		})
	}

	translator, err := nl2sql.New(ctx, cfg.LLM)
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	schemas := schema.Loader{Path: cfg.Schema.Path, Objects: objects, Logger: logger}
	if _, err := schemas.Load(ctx); err != nil {
		logger.Error("failed to load schema description", slog.String("path", cfg.Schema.Path), slog.Any("error", err))
		os.Exit(1)
	}

	executor := warehouse.NewExecutor(backend)
	deps := api.Dependencies{
		Logger: logger,
		Pipeline: &pipeline.Pipeline{
			Schemas:    schemas,
			Translator: translator,
			Executor:   executor,
			Logger:     logger,
			Clock:      time.Now,
		},
		Sessions:          sessions,
		Translator:        translator,
		Schemas:           schemas,
		Warehouse:         executor,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Archive.Enabled {
		deps.Archiver = archive.NewArchiver(objects, logger)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("warehouse", backend.Name()),
			slog.String("llm_provider", cfg.LLM.Provider),
			slog.String("sessions", cfg.Sessions.Backend),
			slog.Bool("archive", cfg.Archive.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
