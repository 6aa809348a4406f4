package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/SteelMorgan/serilog-dashboard/internal/clef"
	"github.com/SteelMorgan/serilog-dashboard/internal/domain"
	"github.com/SteelMorgan/serilog-dashboard/internal/metrics"
	"github.com/SteelMorgan/serilog-dashboard/internal/normalizer"
	"github.com/SteelMorgan/serilog-dashboard/internal/tenant"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultBatchSize is the number of events passed to a single Append call
const DefaultBatchSize = 50

var (
	// ErrUnsupportedContentType means the request did not declare the CLEF media type
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrEmptyBody means the request body was empty or whitespace
	ErrEmptyBody = errors.New("request body is empty")
	// ErrNoValidEvents means no line of the body decoded into an event
	ErrNoValidEvents = errors.New("no valid log events found")
)

// EventAppender is the part of the log store used by ingestion
type EventAppender interface {
	Append(ctx context.Context, events []*domain.Event) error
}

// TenantResolver attributes an ingestion request to a tenant
type TenantResolver interface {
	Resolve(ctx context.Context, c tenant.Credentials) (tenant.Tenant, error)
}

// IngestRequest is a raw CLEF batch as received over HTTP
type IngestRequest struct {
	ContentType string
	Body        []byte
	Credentials tenant.Credentials
}

// IngestResult summarizes a stored batch
type IngestResult struct {
	Tenant   tenant.Tenant
	Accepted int
	Skipped  int
	Dropped  int
}

// RawEventsHandler handles CLEF ingestion
type RawEventsHandler struct {
	store      EventAppender
	resolver   TenantResolver
	normalizer *normalizer.EventNormalizer
	metrics    *metrics.Metrics
	batchSize  int
}

// NewRawEventsHandler creates a new ingestion handler.
// batchSize < 1 selects DefaultBatchSize; m may be nil.
func NewRawEventsHandler(store EventAppender, resolver TenantResolver, n *normalizer.EventNormalizer, m *metrics.Metrics, batchSize int) *RawEventsHandler {
	if n == nil {
		n = normalizer.NewEventNormalizer()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &RawEventsHandler{
		store:      store,
		resolver:   resolver,
		normalizer: n,
		metrics:    m,
		batchSize:  batchSize,
	}
}

// Ingest decodes, normalizes and stores a CLEF batch.
// Nothing is stored unless at least one event decodes; batches stored before a failing
// Append stay stored.
func (h *RawEventsHandler) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	ctx, span := startSpan(ctx, "handlers.IngestRawEvents",
		attribute.String("handler", "raw_events"),
		attribute.Int("body_bytes", len(req.Body)),
	)

	var result IngestResult

	if !clef.IsCLEFContentType(req.ContentType) {
		err := fmt.Errorf("%w: %q", ErrUnsupportedContentType, req.ContentType)
		endSpanWithError(span, err, "validation failed")
		return result, err
	}

	if len(bytes.TrimSpace(req.Body)) == 0 {
		endSpanWithError(span, ErrEmptyBody, "validation failed")
		return result, ErrEmptyBody
	}

	t, err := h.resolver.Resolve(ctx, req.Credentials)
	if err != nil {
		endSpanWithError(span, err, "tenant resolution failed")
		return result, err
	}
	result.Tenant = t
	span.SetAttributes(
		attribute.Int64("client_id", t.ClientID),
		attribute.Int64("instance_id", t.InstanceID),
	)

	decoder := clef.NewDecoder(func(line int, err error) {
		result.Skipped++
		h.metrics.LinesSkipped.Inc()
	})

	var events []*domain.Event
	for rec := range decoder.Decode(req.Body) {
		ev, err := h.normalizer.Normalize(rec, t)
		if err != nil {
			log.Warn().Err(err).Int("line", rec.Line).Msg("Dropping CLEF record")
			result.Dropped++
			h.metrics.EventsDropped.Inc()
			continue
		}
		events = append(events, ev)
	}

	if len(events) == 0 {
		endSpanWithError(span, ErrNoValidEvents, "validation failed")
		return result, ErrNoValidEvents
	}

	for batch := range slices.Chunk(events, h.batchSize) {
		if err := h.store.Append(ctx, batch); err != nil {
			err = fmt.Errorf("failed to store events: %w", err)
			log.Error().Err(err).
				Int64("client_id", t.ClientID).
				Int64("instance_id", t.InstanceID).
				Int("stored", result.Accepted).
				Int("batch", len(batch)).
				Msg("Failed to store CLEF batch")
			endSpanWithError(span, err, "append failed")
			return result, err
		}
		result.Accepted += len(batch)
		h.metrics.AppendBatchSizes.Observe(float64(len(batch)))
		h.metrics.EventsIngested.Add(float64(len(batch)))
	}

	log.Info().
		Int64("client_id", t.ClientID).
		Int64("instance_id", t.InstanceID).
		Int("accepted", result.Accepted).
		Int("skipped", result.Skipped).
		Int("dropped", result.Dropped).
		Msg("Ingested CLEF batch")

	endSpanSuccess(span,
		attribute.Int("accepted", result.Accepted),
		attribute.Int("skipped", result.Skipped),
	)
	return result, nil
}
