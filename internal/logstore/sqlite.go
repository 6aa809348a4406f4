package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file store for development and small installations.
// Timestamps are TEXT in query.SQLiteTimeLayout so ordering by text orders by time.
type SQLiteStore struct {
	*sqlStore
}

// OpenSQLite opens (creating if needed) the database file at path
func OpenSQLite(ctx context.Context, path, table string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(ctx, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Str("table", table).Msg("Opened SQLite store")
	return store, nil
}

// NewSQLiteStore uses an open database and creates the table and indexes if missing
func NewSQLiteStore(ctx context.Context, db *sql.DB, table string) (*SQLiteStore, error) {
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`

	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS ` + quoted + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			instance_id INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			level TEXT,
			message TEXT,
			message_template TEXT,
			properties TEXT NOT NULL DEFAULT '{}',
			event_id TEXT NOT NULL,
			exception_information TEXT,
			raw TEXT
		)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_client_instance" ON %s (client_id, instance_id, timestamp)`, table, quoted),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_level" ON %s (level)`, table, quoted),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{
		sqlStore: newSQLStore(db, quoted, query.SQLite{}, func(ph string) string { return ph }),
	}, nil
}
