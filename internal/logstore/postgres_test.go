package logstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgTable = `"public"."log_events"`

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + pgTable)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "idx_log_events_timestamp"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "idx_log_events_level"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "idx_log_events_client_instance"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewPostgresStore(context.Background(), db, "public", "log_events")
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStore_SchemaBootstrapError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	_, err = NewPostgresStore(context.Background(), db, "public", "log_events")
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append(t *testing.T) {
	store, mock := newMockPostgres(t)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []*domain.Event{
		{
			ClientID:        1,
			InstanceID:      2,
			Timestamp:       ts,
			Level:           domain.StringPtr("Error"),
			Message:         domain.StringPtr("Hello World"),
			MessageTemplate: domain.StringPtr("Hello {name}"),
			Properties:      domain.Properties{"name": domain.Text("World")},
			EventID:         "e1",
			Raw:             `{"@mt":"Hello {name}","name":"World"}`,
		},
		{
			ClientID:   1,
			InstanceID: 2,
			Timestamp:  ts,
			EventID:    "e2",
		},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO " + pgTable + " (client_id, instance_id, timestamp, level, message, message_template, properties, event_id, exception_information, raw) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)"))
	prep.ExpectExec().
		WithArgs(int64(1), int64(2), ts, "Error", "Hello World", "Hello {name}", `{"name":"World"}`, "e1", nil, events[0].Raw).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(int64(1), int64(2), ts, nil, nil, nil, "{}", "e2", nil, "").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Append(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendRollsBackOnError(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO").ExpectExec().WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := store.Append(context.Background(), []*domain.Event{{EventID: "e1", Timestamp: time.Now()}})
	assert.ErrorContains(t, err, "unique violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchAndCount(t *testing.T) {
	store, mock := newMockPostgres(t)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, err := query.NewPlanner(store.Dialect()).Plan(1, 2, []query.Condition{
		{Field: "user", Operator: "=", Value: "alice"},
	}, query.NewPage(1, 100))
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"client_id", "instance_id", "timestamp", "level", "message", "message_template", "properties", "event_id", "exception_information", "raw"}).
		AddRow(int64(1), int64(2), ts.In(time.FixedZone("X", 3600)), "Information", "hi alice", nil, []byte(`{"user": "alice"}`), "e1", nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(plan.SearchSQL(pgTable))).
		WithArgs(int64(1), int64(2), "alice", 100, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(plan.CountSQL(pgTable))).
		WithArgs(int64(1), int64(2), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	events, err := store.Search(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].EventID)
	assert.Equal(t, time.UTC, events[0].Timestamp.Location())
	assert.True(t, events[0].Timestamp.Equal(ts))
	assert.Nil(t, events[0].MessageTemplate)
	assert.Equal(t, domain.Text("alice"), events[0].Properties["user"])

	total, err := store.Count(context.Background(), plan)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchError(t *testing.T) {
	store, mock := newMockPostgres(t)

	plan, err := query.NewPlanner(store.Dialect()).Plan(1, 2, nil, query.NewPage(1, 10))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset by peer"))

	_, err = store.Search(context.Background(), plan)
	assert.ErrorContains(t, err, "failed to query events")
}
