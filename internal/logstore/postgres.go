package logstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/SteelMorgan/serilog-dashboard/internal/retry"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PostgresStore keeps events in a table with a JSONB properties column
type PostgresStore struct {
	*sqlStore
}

// OpenPostgres connects with lib/pq, waits for the server and bootstraps the table
func OpenPostgres(ctx context.Context, dsn, schema, table string, retryCfg retry.Config) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := retry.Do(ctx, retryCfg, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store, err := NewPostgresStore(ctx, db, schema, table)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("schema", schema).Str("table", table).Msg("Connected to PostgreSQL")
	return store, nil
}

// NewPostgresStore uses an open database and creates the table and indexes if missing
func NewPostgresStore(ctx context.Context, db *sql.DB, schema, table string) (*PostgresStore, error) {
	qualified := pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)

	for _, stmt := range postgresSchema(qualified, table) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
		}
	}

	return &PostgresStore{
		sqlStore: newSQLStore(db, qualified, query.Postgres{}, func(ph string) string { return ph + "::jsonb" }),
	}, nil
}

func postgresSchema(qualified, table string) []string {
	index := func(suffix, columns string) string {
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			pq.QuoteIdentifier("idx_"+table+"_"+suffix), qualified, columns)
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS ` + qualified + ` (
			id BIGSERIAL PRIMARY KEY,
			client_id BIGINT NOT NULL,
			instance_id BIGINT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			level VARCHAR(50),
			message TEXT,
			message_template TEXT,
			properties JSONB NOT NULL DEFAULT '{}'::jsonb,
			event_id VARCHAR(50) NOT NULL,
			exception_information TEXT,
			raw TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		index("timestamp", "timestamp"),
		index("level", "level"),
		index("client_instance", "client_id, instance_id, timestamp DESC"),
	}
}
