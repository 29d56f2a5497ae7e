package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan opens a span on the globally registered tracer provider. The
// caller must End the returned span. Until [InitProvider] runs, the global
// provider is a no-op, so spans cost nothing and trace IDs stay empty.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(scopeName).Start(ctx, name, opts...)
}

// CorrelationID returns the trace ID of the span in ctx, or "" when ctx
// carries no sampled span. The same value is what [Middleware] writes into
// the X-Correlation-ID response header, so a caller can quote it when
// reporting a failed booking.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger bound to the trace and span IDs in ctx,
// so log lines emitted during a booking can be matched to their span. With
// no span in ctx it returns the default logger unchanged.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}
