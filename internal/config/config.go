package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grafana/regexp"
)

// Store backends
const (
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var dsnQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Config holds all configuration for the application
type Config struct {
	// HTTP server
	HTTPPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64

	// Store selection
	StoreBackend string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDB       string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseTable    string
	ClickHouseProtocol string // native | http

	// PostgreSQL configuration
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSchema   string
	PostgresTable    string
	PostgresSSLMode  string

	// SQLite configuration
	SQLitePath  string
	SQLiteTable string

	// Ingestion
	IngestBatchSize int

	// Tenants
	TenantDBPath      string
	TenantMapPath     string
	DefaultClientID   *int64 // nil disables the default tenant
	DefaultInstanceID *int64

	// Store connection retry
	RetryMaxAttempts    int
	RetryInitialDelayMs int
	RetryMaxDelayMs     int

	// Observability
	LogLevel       string
	LogFile        string
	TracingEnabled bool
	OTelEndpoint   string
	OTelProtocol   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:     getEnvInt("HTTP_PORT", 8080),
		ReadTimeout:  time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 60)) * time.Second,
		MaxBodyBytes: getEnvInt64("MAX_BODY_BYTES", 10<<20),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendClickHouse)),

		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:       getEnv("CLICKHOUSE_DB", "logs"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickHouseTable:    getEnv("CLICKHOUSE_TABLE", "log_events"),
		ClickHouseProtocol: getEnv("CLICKHOUSE_PROTOCOL", "native"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "logs"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSchema:   getEnv("POSTGRES_SCHEMA", "public"),
		PostgresTable:    getEnv("POSTGRES_TABLE", "log_events"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SQLitePath:  getEnv("SQLITE_PATH", "data/logs.db"),
		SQLiteTable: getEnv("SQLITE_TABLE", "log_events"),

		IngestBatchSize: getEnvInt("INGEST_BATCH_SIZE", 50),

		TenantDBPath:      getEnv("TENANT_DB_PATH", "data/tenants.db"),
		TenantMapPath:     getEnv("TENANT_MAP_PATH", ""),
		DefaultClientID:   getEnvInt64Ptr("DEFAULT_CLIENT_ID"),
		DefaultInstanceID: getEnvInt64Ptr("DEFAULT_INSTANCE_ID"),

		RetryMaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelayMs: getEnvInt("RETRY_INITIAL_DELAY_MS", 200),
		RetryMaxDelayMs:     getEnvInt("RETRY_MAX_DELAY_MS", 5000),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTelEndpoint:   getEnv("OTEL_ENDPOINT", ""),
		OTelProtocol:   getEnv("OTEL_PROTOCOL", "grpc"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.IngestBatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1")
	}
	if (c.DefaultClientID == nil) != (c.DefaultInstanceID == nil) {
		return fmt.Errorf("DEFAULT_CLIENT_ID and DEFAULT_INSTANCE_ID must be set together")
	}

	switch c.StoreBackend {
	case BackendClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
		if p := strings.ToLower(c.ClickHouseProtocol); p != "native" && p != "http" {
			return fmt.Errorf("CLICKHOUSE_PROTOCOL must be 'native' or 'http'")
		}
		return validIdentifier("CLICKHOUSE_TABLE", c.ClickHouseTable)
	case BackendPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be between 1 and 65535")
		}
		if err := validIdentifier("POSTGRES_SCHEMA", c.PostgresSchema); err != nil {
			return err
		}
		return validIdentifier("POSTGRES_TABLE", c.PostgresTable)
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
		return validIdentifier("SQLITE_TABLE", c.SQLiteTable)
	default:
		return fmt.Errorf("STORE_BACKEND must be one of %s, %s, %s", BackendClickHouse, BackendPostgres, BackendSQLite)
	}
}

// PostgresDSN builds a lib/pq connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password='%s' sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser,
		dsnQuoter.Replace(c.PostgresPassword), c.PostgresSSLMode)
}

func validIdentifier(name, value string) error {
	if !identifierPattern.MatchString(value) {
		return fmt.Errorf("%s must be a plain SQL identifier, got %q", name, value)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64Ptr returns nil when the variable is unset or not a number
func getEnvInt64Ptr(key string) *int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
