package logstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/SteelMorgan/serilog-dashboard/internal/clickhouse"
	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/rs/zerolog/log"
)

// DateTime64(9) range: nanoseconds since epoch must fit in Int64
var (
	minClickHouseDateTime = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2262, 4, 11, 23, 47, 16, 0, time.UTC)
)

// clampDateTime keeps t inside the DateTime64 range; out-of-range values would be stored wrapped
func clampDateTime(t time.Time) time.Time {
	switch {
	case t.Before(minClickHouseDateTime):
		return minClickHouseDateTime
	case t.After(maxClickHouseDateTime):
		return maxClickHouseDateTime
	default:
		return t.UTC()
	}
}

// conn is the subset of the ClickHouse client the store needs
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	PrepareBatch(ctx context.Context, query string) (driver.Batch, error)
	Close() error
}

var _ conn = (*clickhouse.Client)(nil)

// ClickHouseStore writes events with native batches and reads them with JSONExtract predicates
type ClickHouseStore struct {
	conn  conn
	table string
}

// NewClickHouseStore creates the table if missing
func NewClickHouseStore(ctx context.Context, c conn, table string) (*ClickHouseStore, error) {
	ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		client_id Int64,
		instance_id Int64,
		timestamp DateTime64(9, 'UTC'),
		level Nullable(String),
		message Nullable(String),
		message_template Nullable(String),
		properties String,
		event_id String,
		exception_information Nullable(String),
		raw String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (client_id, instance_id, timestamp)`

	if err := c.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create clickhouse table: %w", err)
	}

	return &ClickHouseStore{conn: c, table: table}, nil
}

func (s *ClickHouseStore) Dialect() query.Dialect {
	return query.ClickHouse{}
}

// Append sends events as one native batch
func (s *ClickHouseStore) Append(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, evt := range events {
		props, err := evt.Properties.Encode()
		if err != nil {
			batch.Abort()
			return fmt.Errorf("event %s: %w", evt.EventID, err)
		}
		if err := batch.Append(
			evt.ClientID,
			evt.InstanceID,
			clampDateTime(evt.Timestamp),
			evt.Level,
			evt.Message,
			evt.MessageTemplate,
			props,
			evt.EventID,
			evt.ExceptionInformation,
			evt.Raw,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append event %s to batch: %w", evt.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Debug().Int("count", len(events)).Str("table", s.table).Msg("Events written to ClickHouse")
	return nil
}

func (s *ClickHouseStore) Search(ctx context.Context, plan *query.Plan) ([]*domain.Event, error) {
	rows, err := s.conn.Query(ctx, plan.SearchSQL(s.table), plan.SearchArgs()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.Event, 0, plan.Page.Size)
	for rows.Next() {
		var (
			evt   domain.Event
			props string
		)
		if err := rows.Scan(
			&evt.ClientID,
			&evt.InstanceID,
			&evt.Timestamp,
			&evt.Level,
			&evt.Message,
			&evt.MessageTemplate,
			&props,
			&evt.EventID,
			&evt.ExceptionInformation,
			&evt.Raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		evt.Timestamp = evt.Timestamp.UTC()
		if evt.Properties, err = domain.ParseProperties(props); err != nil {
			return nil, fmt.Errorf("event %s has invalid properties: %w", evt.EventID, err)
		}
		events = append(events, &evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

func (s *ClickHouseStore) Count(ctx context.Context, plan *query.Plan) (int64, error) {
	var total uint64
	if err := s.conn.QueryRow(ctx, plan.CountSQL(s.table), plan.Args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return int64(total), nil
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
