package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	WarehouseDriverPostgres = "postgres"
	WarehouseDriverDuckDB   = "duckdb"

	LLMProviderOllama = "ollama"
	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"

	SessionBackendMemory   = "memory"
	SessionBackendPostgres = "postgres"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "mannix/defog-llama3-sqlcoder-8b"
	defaultOpenAIBaseURL = "https://api.openai.com"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	Schema        SchemaConfig
	LLM           LLMConfig
	Sessions      SessionsConfig
	ObjectStore   ObjectStoreConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WarehouseConfig describes the read-only target. DSN, when set, wins over
// the individual connection fields.
type WarehouseConfig struct {
	Driver     string
	Host       string
	Port       int
	Database   string
	User       string
	Password   string
	SSLMode    string
	DSN        string
	DuckDBPath string
}

type SchemaConfig struct {
	Path string
}

type LLMConfig struct {
	Provider      string
	BaseURL       string
	APIKey        string
	Model         string
	ContextWindow int
	Temperature   float64
	Timeout       time.Duration
}

type SessionsConfig struct {
	Backend         string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ArchiveConfig struct {
	Enabled bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

// LoadDotEnv loads .env and then .env.local into the process environment.
// Missing files are skipped; variables already set in the environment win
// over .env, while .env.local overrides both.
func LoadDotEnv(dir string) error {
	base := ".env"
	local := ".env.local"
	if dir != "" {
		base = dir + string(os.PathSeparator) + base
		local = dir + string(os.PathSeparator) + local
	}
	if _, err := os.Stat(base); err == nil {
		if err := godotenv.Load(base); err != nil {
			return fmt.Errorf("load %s: %w", base, err)
		}
	}
	if _, err := os.Stat(local); err == nil {
		if err := godotenv.Overload(local); err != nil {
			return fmt.Errorf("load %s: %w", local, err)
		}
	}
	return nil
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLAGENT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLAGENT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// Plain POSTGRES_* and OLLAMA_BASE_URL variables are accepted too. The
	// SQLAGENT_* equivalents below take precedence.
	if err := applyString(lookup, "POSTGRES_HOST", &cfg.Warehouse.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "POSTGRES_PORT", &cfg.Warehouse.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "POSTGRES_DB", &cfg.Warehouse.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "POSTGRES_USER", &cfg.Warehouse.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "POSTGRES_PASSWORD", &cfg.Warehouse.Password); err != nil {
		return Config{}, err
	}
	var ollamaBaseURL string
	if err := applyString(lookup, "OLLAMA_BASE_URL", &ollamaBaseURL); err != nil {
		return Config{}, err
	}

	if err := applyString(lookup, "SQLAGENT_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_HOST", &cfg.Warehouse.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_WAREHOUSE_PORT", &cfg.Warehouse.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_DATABASE", &cfg.Warehouse.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_USER", &cfg.Warehouse.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_PASSWORD", &cfg.Warehouse.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_SSLMODE", &cfg.Warehouse.SSLMode); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_DSN", &cfg.Warehouse.DSN); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_WAREHOUSE_DUCKDB_PATH", &cfg.Warehouse.DuckDBPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_SCHEMA_PATH", &cfg.Schema.Path); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_LLM_PROVIDER", &cfg.LLM.Provider); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_LLM_BASE_URL", &cfg.LLM.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_LLM_API_KEY", &cfg.LLM.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_LLM_MODEL", &cfg.LLM.Model); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_LLM_CONTEXT_WINDOW", &cfg.LLM.ContextWindow); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLAGENT_LLM_TEMPERATURE", &cfg.LLM.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_SESSIONS_BACKEND", &cfg.Sessions.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_SESSIONS_DSN", &cfg.Sessions.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_SESSIONS_MAX_OPEN_CONNS", &cfg.Sessions.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_SESSIONS_MAX_IDLE_CONNS", &cfg.Sessions.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_SESSIONS_CONN_MAX_IDLE_TIME", &cfg.Sessions.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_SESSIONS_CONN_MAX_LIFETIME", &cfg.Sessions.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_ARCHIVE_ENABLED", &cfg.Archive.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLAGENT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	cfg.Warehouse.Driver = strings.ToLower(cfg.Warehouse.Driver)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Sessions.Backend = strings.ToLower(cfg.Sessions.Backend)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Warehouse.Driver {
	case WarehouseDriverPostgres:
	case WarehouseDriverDuckDB:
		if cfg.Warehouse.DuckDBPath == "" {
			return Config{}, fmt.Errorf("SQLAGENT_WAREHOUSE_DUCKDB_PATH is required for the duckdb driver")
		}
	default:
		return Config{}, fmt.Errorf("invalid SQLAGENT_WAREHOUSE_DRIVER: %q", cfg.Warehouse.Driver)
	}
	switch cfg.LLM.Provider {
	case LLMProviderOllama, LLMProviderOpenAI, LLMProviderGemini:
	default:
		return Config{}, fmt.Errorf("invalid SQLAGENT_LLM_PROVIDER: %q", cfg.LLM.Provider)
	}
	switch cfg.Sessions.Backend {
	case SessionBackendMemory:
	case SessionBackendPostgres:
		if cfg.Sessions.DSN == "" {
			return Config{}, fmt.Errorf("SQLAGENT_SESSIONS_DSN is required for the postgres session backend")
		}
		// A chat holds one connection for its whole run; reads need another.
		if cfg.Sessions.MaxOpenConns == 1 {
			return Config{}, fmt.Errorf("SQLAGENT_SESSIONS_MAX_OPEN_CONNS must be at least 2 for the postgres session backend")
		}
	default:
		return Config{}, fmt.Errorf("invalid SQLAGENT_SESSIONS_BACKEND: %q", cfg.Sessions.Backend)
	}
	if cfg.LLM.ContextWindow < 0 {
		return Config{}, fmt.Errorf("SQLAGENT_LLM_CONTEXT_WINDOW must not be negative")
	}
	applyLLMDefaults(&cfg.LLM, ollamaBaseURL)
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlagent-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 6 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Driver:   WarehouseDriverPostgres,
			Host:     "localhost",
			Port:     5432,
			Database: "postgres",
			User:     "postgres",
			Password: "postgres",
			SSLMode:  "disable",
		},
		LLM: LLMConfig{
			Provider:      LLMProviderOllama,
			ContextWindow: 2048,
			Temperature:   0,
			Timeout:       300 * time.Second,
		},
		Sessions: SessionsConfig{
			Backend:         SessionBackendMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlagent",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Archive: ArchiveConfig{
			Enabled: false,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Warehouse.SSLMode = "require"
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

// UsesObjectStore reports whether any configured component reads or writes
// the object store.
func (c Config) UsesObjectStore() bool {
	return c.Archive.Enabled || strings.HasPrefix(c.Schema.Path, "s3://")
}

// applyLLMDefaults fills the endpoint and model the environment left empty,
// once the provider is known. Gemini and OpenAI models default inside their
// translators.
func applyLLMDefaults(llm *LLMConfig, ollamaBaseURL string) {
	switch llm.Provider {
	case LLMProviderOllama:
		if llm.BaseURL == "" {
			llm.BaseURL = ollamaBaseURL
		}
		if llm.BaseURL == "" {
			llm.BaseURL = defaultOllamaBaseURL
		}
		if llm.Model == "" {
			llm.Model = defaultOllamaModel
		}
	case LLMProviderOpenAI:
		if llm.BaseURL == "" {
			llm.BaseURL = defaultOpenAIBaseURL
		}
	}
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
