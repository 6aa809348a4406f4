package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/metrics"
	"github.com/SteelMorgan/serilog-dashboard/internal/query"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// EventSearcher is the part of the log store used by searches
type EventSearcher interface {
	Dialect() query.Dialect
	Search(ctx context.Context, plan *query.Plan) ([]*domain.Event, error)
	Count(ctx context.Context, plan *query.Plan) (int64, error)
}

// LogQueryRequest is the body of a log search
type LogQueryRequest struct {
	ClientID   *int64            `json:"client_id"`
	InstanceID *int64            `json:"instance_id"`
	Conditions []query.Condition `json:"conditions"`
	TimeZone   string            `json:"time_zone"`
	PageSize   int               `json:"page_size"`
	PageNumber int               `json:"page_number"`
}

// LogQueryResponse is one page of search results
type LogQueryResponse struct {
	Events     []*domain.Event `json:"events"`
	TotalCount int64           `json:"total_count"`
	PageSize   int             `json:"page_size"`
	PageNumber int             `json:"page_number"`
	TotalPages int             `json:"total_pages"`
}

// LogQueryHandler handles log searches
type LogQueryHandler struct {
	store   EventSearcher
	planner *query.Planner
	metrics *metrics.Metrics
}

// NewLogQueryHandler creates a new search handler; m may be nil
func NewLogQueryHandler(store EventSearcher, m *metrics.Metrics) *LogQueryHandler {
	if m == nil {
		m = metrics.New(nil)
	}
	return &LogQueryHandler{
		store:   store,
		planner: query.NewPlanner(store.Dialect()),
		metrics: m,
	}
}

// Search returns the requested page of events for one tenant, newest first
func (h *LogQueryHandler) Search(ctx context.Context, req LogQueryRequest) (*LogQueryResponse, error) {
	ctx, span := startSpan(ctx, "handlers.SearchLogs",
		attribute.String("handler", "log_query"),
		attribute.Int("conditions", len(req.Conditions)),
		attribute.String("time_zone", req.TimeZone),
	)

	start := time.Now()
	defer func() {
		h.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	if err := ValidateTenant(req.ClientID, req.InstanceID); err != nil {
		endSpanWithError(span, err, "validation failed")
		return nil, err
	}
	clientID, instanceID := *req.ClientID, *req.InstanceID
	span.SetAttributes(
		attribute.Int64("client_id", clientID),
		attribute.Int64("instance_id", instanceID),
	)

	page := query.NewPage(req.PageNumber, req.PageSize)

	plan, err := h.planner.Plan(clientID, instanceID, req.Conditions, page)
	if err != nil {
		var condErr *query.ConditionError
		switch {
		case errors.As(err, &condErr):
			err = conditionValidationError(condErr)
		case errors.Is(err, query.ErrPageOutOfRange):
			err = pageValidationError(err)
		}
		endSpanWithError(span, err, "validation failed")
		return nil, err
	}

	events, err := h.store.Search(ctx, plan)
	if err != nil {
		err = fmt.Errorf("failed to search events: %w", err)
		log.Error().Err(err).Int64("client_id", clientID).Int64("instance_id", instanceID).Msg("Log search failed")
		endSpanWithError(span, err, "search failed")
		return nil, err
	}

	total, err := h.store.Count(ctx, plan)
	if err != nil {
		err = fmt.Errorf("failed to count events: %w", err)
		log.Error().Err(err).Int64("client_id", clientID).Int64("instance_id", instanceID).Msg("Log count failed")
		endSpanWithError(span, err, "count failed")
		return nil, err
	}

	query.ConvertTimezone(events, req.TimeZone)

	if events == nil {
		events = []*domain.Event{}
	}

	log.Debug().
		Int64("client_id", clientID).
		Int64("instance_id", instanceID).
		Int("returned", len(events)).
		Int64("total", total).
		Dur("elapsed", time.Since(start)).
		Msg("Log search completed")

	endSpanSuccess(span,
		attribute.Int("returned", len(events)),
		attribute.Int64("total", total),
	)

	return &LogQueryResponse{
		Events:     events,
		TotalCount: total,
		PageSize:   page.Size,
		PageNumber: page.Number,
		TotalPages: query.TotalPages(total, page.Size),
	}, nil
}
