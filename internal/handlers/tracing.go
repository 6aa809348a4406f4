package handlers

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "serilog-dashboard/handlers"

// startSpan creates a new span for handler operation
func startSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, operationName, trace.WithAttributes(attrs...))
}

// endSpanWithError marks span as failed and ends it
func endSpanWithError(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprintf("%s: %v", msg, err))
	span.End()
}

// endSpanSuccess marks span as successful and ends it
func endSpanSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "success")
	span.End()
}
