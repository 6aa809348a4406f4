package logstore

import (
	"context"

	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/query"
)

// Store persists events and answers tenant-scoped searches.
// Implementations are safe for concurrent use.
type Store interface {
	// Dialect is the SQL flavour plans must be compiled for
	Dialect() query.Dialect

	// Append inserts events. There is no atomicity across separate calls.
	Append(ctx context.Context, events []*domain.Event) error

	// Search returns the page described by plan, newest first
	Search(ctx context.Context, plan *query.Plan) ([]*domain.Event, error)

	// Count returns all rows matching plan, ignoring pagination
	Count(ctx context.Context, plan *query.Plan) (int64, error)

	Close() error
}
