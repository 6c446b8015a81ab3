package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("sqlagent-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Warehouse.Driver != WarehouseDriverPostgres {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.Port != 5432 {
		t.Fatalf("Warehouse.Port = %d", cfg.Warehouse.Port)
	}
	if cfg.LLM.Provider != LLMProviderOllama {
		t.Fatalf("LLM.Provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "mannix/defog-llama3-sqlcoder-8b" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.ContextWindow != 2048 {
		t.Fatalf("LLM.ContextWindow = %d", cfg.LLM.ContextWindow)
	}
	if cfg.LLM.Timeout != 300*time.Second {
		t.Fatalf("LLM.Timeout = %s", cfg.LLM.Timeout)
	}
	if cfg.Sessions.Backend != SessionBackendMemory {
		t.Fatalf("Sessions.Backend = %q", cfg.Sessions.Backend)
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
	if cfg.UsesObjectStore() {
		t.Fatal("UsesObjectStore() should be false by default")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SQLAGENT_PROFILE": "prod"})
	cfg, err := Load("sqlagent-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Warehouse.SSLMode != "require" {
		t.Fatalf("Warehouse.SSLMode = %q", cfg.Warehouse.SSLMode)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadLegacyPostgresVariables(t *testing.T) {
	cfg, err := Load("sqlagent-api", mapLookup(map[string]string{
		"POSTGRES_HOST":     "db.internal",
		"POSTGRES_PORT":     "6543",
		"POSTGRES_DB":       "retail",
		"POSTGRES_USER":     "analyst",
		"POSTGRES_PASSWORD": "pw",
		"OLLAMA_BASE_URL":   "http://ollama:11434",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Warehouse.Host != "db.internal" || cfg.Warehouse.Port != 6543 {
		t.Fatalf("Warehouse host/port = %q/%d", cfg.Warehouse.Host, cfg.Warehouse.Port)
	}
	if cfg.Warehouse.Database != "retail" || cfg.Warehouse.User != "analyst" || cfg.Warehouse.Password != "pw" {
		t.Fatalf("Warehouse = %+v", cfg.Warehouse)
	}
	if cfg.LLM.BaseURL != "http://ollama:11434" {
		t.Fatalf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
}

func TestPrefixedVariablesWinOverLegacy(t *testing.T) {
	cfg, err := Load("sqlagent-api", mapLookup(map[string]string{
		"POSTGRES_HOST":           "legacy-host",
		"SQLAGENT_WAREHOUSE_HOST": "new-host",
		"OLLAMA_BASE_URL":         "http://legacy:11434",
		"SQLAGENT_LLM_BASE_URL":   "http://new:11434",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Warehouse.Host != "new-host" {
		t.Fatalf("Warehouse.Host = %q", cfg.Warehouse.Host)
	}
	if cfg.LLM.BaseURL != "http://new:11434" {
		t.Fatalf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLAGENT_PROFILE":                        "test",
		"SQLAGENT_SERVICE_NAME":                   "sqlagent-custom",
		"SQLAGENT_HTTP_ADDR":                      ":9999",
		"SQLAGENT_HTTP_READ_TIMEOUT":              "2s",
		"SQLAGENT_HTTP_WRITE_TIMEOUT":             "3s",
		"SQLAGENT_LOG_LEVEL":                      "error",
		"SQLAGENT_WAREHOUSE_DRIVER":               "DuckDB",
		"SQLAGENT_WAREHOUSE_DUCKDB_PATH":          "/data/retail.duckdb",
		"SQLAGENT_WAREHOUSE_DSN":                  "postgres://example",
		"SQLAGENT_WAREHOUSE_SSLMODE":              "verify-full",
		"SQLAGENT_SCHEMA_PATH":                    "s3://schemas/retail.json",
		"SQLAGENT_LLM_PROVIDER":                   "gemini",
		"SQLAGENT_LLM_API_KEY":                    "secret-key",
		"SQLAGENT_LLM_MODEL":                      "gemini-2.5-flash",
		"SQLAGENT_LLM_CONTEXT_WINDOW":             "4096",
		"SQLAGENT_LLM_TEMPERATURE":                "0.3",
		"SQLAGENT_LLM_TIMEOUT":                    "21s",
		"SQLAGENT_SESSIONS_BACKEND":               "postgres",
		"SQLAGENT_SESSIONS_DSN":                   "postgres://sessions",
		"SQLAGENT_SESSIONS_MAX_OPEN_CONNS":        "42",
		"SQLAGENT_SESSIONS_MAX_IDLE_CONNS":        "17",
		"SQLAGENT_OBJECTSTORE_ENDPOINT":           "s3.example.com",
		"SQLAGENT_OBJECTSTORE_BUCKET":             "sqlagent-prod",
		"SQLAGENT_OBJECTSTORE_USE_SSL":            "true",
		"SQLAGENT_OBJECTSTORE_PREFIX":             "tenant-root",
		"SQLAGENT_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"SQLAGENT_ARCHIVE_ENABLED":                "true",
	})
	cfg, err := Load("sqlagent-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sqlagent-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Warehouse.Driver != WarehouseDriverDuckDB {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Warehouse.DuckDBPath != "/data/retail.duckdb" {
		t.Fatalf("Warehouse.DuckDBPath = %q", cfg.Warehouse.DuckDBPath)
	}
	if cfg.Warehouse.DSN != "postgres://example" {
		t.Fatalf("Warehouse.DSN = %q", cfg.Warehouse.DSN)
	}
	if cfg.Warehouse.SSLMode != "verify-full" {
		t.Fatalf("Warehouse.SSLMode = %q", cfg.Warehouse.SSLMode)
	}
	if cfg.Schema.Path != "s3://schemas/retail.json" {
		t.Fatalf("Schema.Path = %q", cfg.Schema.Path)
	}
	if cfg.LLM.Provider != LLMProviderGemini {
		t.Fatalf("LLM.Provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "secret-key" {
		t.Fatalf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.ContextWindow != 4096 {
		t.Fatalf("LLM.ContextWindow = %d", cfg.LLM.ContextWindow)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Fatalf("LLM.Temperature = %f", cfg.LLM.Temperature)
	}
	if cfg.LLM.Timeout != 21*time.Second {
		t.Fatalf("LLM.Timeout = %s", cfg.LLM.Timeout)
	}
	if cfg.Sessions.Backend != SessionBackendPostgres {
		t.Fatalf("Sessions.Backend = %q", cfg.Sessions.Backend)
	}
	if cfg.Sessions.DSN != "postgres://sessions" {
		t.Fatalf("Sessions.DSN = %q", cfg.Sessions.DSN)
	}
	if cfg.Sessions.MaxOpenConns != 42 || cfg.Sessions.MaxIdleConns != 17 {
		t.Fatalf("Sessions conns = %d/%d", cfg.Sessions.MaxOpenConns, cfg.Sessions.MaxIdleConns)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "sqlagent-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false")
	}
	if !cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled = false, want true")
	}
	if !cfg.UsesObjectStore() {
		t.Fatal("UsesObjectStore() = false, want true")
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLAGENT_PROFILE": "oops"},
		{"SQLAGENT_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLAGENT_WAREHOUSE_PORT": "oops"},
		{"POSTGRES_PORT": "oops"},
		{"SQLAGENT_WAREHOUSE_DRIVER": "oracle"},
		{"SQLAGENT_WAREHOUSE_DRIVER": "duckdb"},
		{"SQLAGENT_LLM_PROVIDER": "unknown"},
		{"SQLAGENT_LLM_CONTEXT_WINDOW": "-1"},
		{"SQLAGENT_LLM_TEMPERATURE": "bad"},
		{"SQLAGENT_SESSIONS_BACKEND": "redis"},
		{"SQLAGENT_SESSIONS_BACKEND": "postgres"},
		{"SQLAGENT_SESSIONS_BACKEND": "postgres", "SQLAGENT_SESSIONS_DSN": "postgres://sessions", "SQLAGENT_SESSIONS_MAX_OPEN_CONNS": "1"},
		{"SQLAGENT_ARCHIVE_ENABLED": "not-bool"},
		{"SQLAGENT_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("sqlagent-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadDotEnvLocalOverridesBase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLAGENT_TEST_DOTENV_A=base\nSQLAGENT_TEST_DOTENV_B=base\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("SQLAGENT_TEST_DOTENV_B=local\n"), 0o600); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}
	t.Setenv("SQLAGENT_TEST_DOTENV_A", "")
	t.Setenv("SQLAGENT_TEST_DOTENV_B", "")
	_ = os.Unsetenv("SQLAGENT_TEST_DOTENV_A")
	_ = os.Unsetenv("SQLAGENT_TEST_DOTENV_B")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SQLAGENT_TEST_DOTENV_A"); got != "base" {
		t.Fatalf("A = %q", got)
	}
	if got := os.Getenv("SQLAGENT_TEST_DOTENV_B"); got != "local" {
		t.Fatalf("B = %q", got)
	}
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLLMDefaultsFollowProvider(t *testing.T) {
	cases := []struct {
		provider string
		baseURL  string
		model    string
	}{
		{provider: "ollama", baseURL: "http://localhost:11434", model: "mannix/defog-llama3-sqlcoder-8b"},
		{provider: "gemini", baseURL: "", model: ""},
		{provider: "openai", baseURL: "https://api.openai.com", model: ""},
	}
	for _, tc := range cases {
		cfg, err := Load("sqlagent-api", mapLookup(map[string]string{
			"SQLAGENT_LLM_PROVIDER": tc.provider,
			"SQLAGENT_LLM_API_KEY":  "k",
			"OLLAMA_BASE_URL":       "",
		}))
		if err != nil {
			t.Fatalf("%s: Load() error = %v", tc.provider, err)
		}
		if cfg.LLM.BaseURL != tc.baseURL {
			t.Fatalf("%s: LLM.BaseURL = %q, want %q", tc.provider, cfg.LLM.BaseURL, tc.baseURL)
		}
		if cfg.LLM.Model != tc.model {
			t.Fatalf("%s: LLM.Model = %q, want %q", tc.provider, cfg.LLM.Model, tc.model)
		}
	}
}

func TestOllamaBaseURLIgnoredForOtherProviders(t *testing.T) {
	cfg, err := Load("sqlagent-api", mapLookup(map[string]string{
		"SQLAGENT_LLM_PROVIDER": "gemini",
		"OLLAMA_BASE_URL":       "http://ollama:11434",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.BaseURL != "" {
		t.Fatalf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
}
