package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/rs/zerolog/log"
)

// sqlStore is the database/sql implementation shared by PostgreSQL and SQLite
type sqlStore struct {
	db        *sql.DB
	table     string // quoted, ready to embed
	dialect   query.Dialect
	insertSQL string
}

func newSQLStore(db *sql.DB, table string, d query.Dialect, propsPlaceholder func(ph string) string) *sqlStore {
	phs := make([]any, 10)
	for i := range phs {
		phs[i] = d.Placeholder(i + 1)
	}
	phs[6] = propsPlaceholder(d.Placeholder(7))

	insert := fmt.Sprintf(
		"INSERT INTO %s (client_id, instance_id, timestamp, level, message, message_template, properties, event_id, exception_information, raw) "+
			"VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)",
		append([]any{table}, phs...)...,
	)

	return &sqlStore{db: db, table: table, dialect: d, insertSQL: insert}
}

func (s *sqlStore) Dialect() query.Dialect {
	return s.dialect
}

// Append inserts all events in one transaction
func (s *sqlStore) Append(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, evt := range events {
		props, err := evt.Properties.Encode()
		if err != nil {
			return fmt.Errorf("event %s: %w", evt.EventID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			evt.ClientID,
			evt.InstanceID,
			s.dialect.TimeArg(evt.Timestamp),
			nullString(evt.Level),
			nullString(evt.Message),
			nullString(evt.MessageTemplate),
			props,
			evt.EventID,
			nullString(evt.ExceptionInformation),
			evt.Raw,
		); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", evt.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	log.Debug().Int("count", len(events)).Str("table", s.table).Msg("Events appended")
	return nil
}

func (s *sqlStore) Search(ctx context.Context, plan *query.Plan) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, plan.SearchSQL(s.table), plan.SearchArgs()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.Event, 0, plan.Page.Size)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

func (s *sqlStore) Count(ctx context.Context, plan *query.Plan) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, plan.CountSQL(s.table), plan.Args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return total, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func scanEvent(rows *sql.Rows) (*domain.Event, error) {
	var (
		evt domain.Event
		ts  timeScanner

		level, message, template, props, exc, raw sql.NullString
	)

	if err := rows.Scan(
		&evt.ClientID,
		&evt.InstanceID,
		&ts,
		&level,
		&message,
		&template,
		&props,
		&evt.EventID,
		&exc,
		&raw,
	); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	properties, err := domain.ParseProperties(props.String)
	if err != nil {
		return nil, fmt.Errorf("event %s has invalid properties: %w", evt.EventID, err)
	}

	evt.Timestamp = ts.Time
	evt.Level = stringPtr(level)
	evt.Message = stringPtr(message)
	evt.MessageTemplate = stringPtr(template)
	evt.Properties = properties
	evt.ExceptionInformation = stringPtr(exc)
	evt.Raw = raw.String

	return &evt, nil
}

// timeScanner reads timestamps stored natively or as fixed-width text
type timeScanner struct {
	Time time.Time
}

func (t *timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (t *timeScanner) parse(s string) error {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	t.Time = ts.UTC()
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
