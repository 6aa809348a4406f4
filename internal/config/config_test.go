package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DEFAULT_CLIENT_ID", "")
	t.Setenv("DEFAULT_INSTANCE_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreBackend != BackendClickHouse {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendClickHouse)
	}
	if cfg.IngestBatchSize != 50 {
		t.Errorf("IngestBatchSize = %d, want 50", cfg.IngestBatchSize)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.DefaultClientID != nil {
		t.Errorf("DefaultClientID = %v, want nil", *cfg.DefaultClientID)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("INGEST_BATCH_SIZE", "10")
	t.Setenv("DEFAULT_CLIENT_ID", "3")
	t.Setenv("DEFAULT_INSTANCE_ID", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreBackend != BackendSQLite || cfg.SQLitePath != "/tmp/x.db" || cfg.IngestBatchSize != 10 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.DefaultClientID == nil || *cfg.DefaultClientID != 3 || *cfg.DefaultInstanceID != 4 {
		t.Errorf("default tenant not loaded")
	}
}

func validConfig() *Config {
	return &Config{
		HTTPPort:           8080,
		MaxBodyBytes:       1024,
		IngestBatchSize:    50,
		StoreBackend:       BackendClickHouse,
		ClickHouseHost:     "localhost",
		ClickHousePort:     9000,
		ClickHouseDB:       "logs",
		ClickHouseTable:    "log_events",
		ClickHouseProtocol: "native",
	}
}

func TestValidate(t *testing.T) {
	one := int64(1)
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTPPort = 0 }, "HTTP_PORT"},
		{"bad batch", func(c *Config) { c.IngestBatchSize = 0 }, "INGEST_BATCH_SIZE"},
		{"half default tenant", func(c *Config) { c.DefaultClientID = &one }, "DEFAULT_CLIENT_ID"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "mysql" }, "STORE_BACKEND"},
		{"table injection", func(c *Config) { c.ClickHouseTable = "logs; DROP TABLE x" }, "CLICKHOUSE_TABLE"},
		{"bad protocol", func(c *Config) { c.ClickHouseProtocol = "grpc" }, "CLICKHOUSE_PROTOCOL"},
		{"postgres schema", func(c *Config) {
			c.StoreBackend = BackendPostgres
			c.PostgresHost = "db"
			c.PostgresPort = 5432
			c.PostgresSchema = "public.x"
			c.PostgresTable = "log_events"
		}, "POSTGRES_SCHEMA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN_QuotesPassword(t *testing.T) {
	cfg := &Config{PostgresHost: "db", PostgresPort: 5432, PostgresDB: "logs", PostgresUser: "u", PostgresPassword: `p'w\d`, PostgresSSLMode: "disable"}
	want := `host=db port=5432 dbname=logs user=u password='p\'w\\d' sslmode=disable`
	if got := cfg.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
}
