// Package observe provides application-wide observability primitives for
// voxcal: OpenTelemetry metrics, distributed tracing, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// scopeName is the instrumentation scope reported on every voxcal metric
// and span.
const scopeName = "github.com/MrWong99/voxcal"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// FunctionDuration tracks agent function dispatch latency, booking
	// included. Use with attribute.String("function", ...).
	FunctionDuration metric.Float64Histogram

	// ResolveDuration tracks start-time resolution latency.
	ResolveDuration metric.Float64Histogram

	// --- Counters ---

	// FunctionCalls counts agent function invocations. Use with attributes:
	//   attribute.String("function", ...), attribute.String("status", ...)
	FunctionCalls metric.Int64Counter

	// Bookings counts booking outcomes. Use with attribute:
	//   attribute.String("status", ...) ("booked" or "failed")
	Bookings metric.Int64Counter

	// ResolveFailures counts start-time resolution failures. Use with
	// attribute: attribute.String("kind", ...)
	ResolveFailures metric.Int64Counter

	// SessionEvents counts agent session events by protocol type.
	SessionEvents metric.Int64Counter

	// SessionReconnects counts reconnection attempts after a dropped
	// agent session.
	SessionReconnects metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live agent sessions (0 or 1 in
	// the single-session client, but kept additive for future use).
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// local dispatch work up to slow remote calendar calls.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(scopeName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FunctionDuration, err = m.Float64Histogram("voxcal.function.duration",
		metric.WithDescription("Latency of agent function dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResolveDuration, err = m.Float64Histogram("voxcal.resolve.duration",
		metric.WithDescription("Latency of start-time resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FunctionCalls, err = m.Int64Counter("voxcal.function.calls",
		metric.WithDescription("Total agent function invocations by function name and status."),
	); err != nil {
		return nil, err
	}
	if met.Bookings, err = m.Int64Counter("voxcal.bookings",
		metric.WithDescription("Total booking attempts by outcome status."),
	); err != nil {
		return nil, err
	}
	if met.ResolveFailures, err = m.Int64Counter("voxcal.resolve.failures",
		metric.WithDescription("Total start-time resolution failures by error kind."),
	); err != nil {
		return nil, err
	}
	if met.SessionEvents, err = m.Int64Counter("voxcal.session.events",
		metric.WithDescription("Total agent session events by protocol message type."),
	); err != nil {
		return nil, err
	}
	if met.SessionReconnects, err = m.Int64Counter("voxcal.session.reconnects",
		metric.WithDescription("Total reconnection attempts after dropped agent sessions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxcal.active_sessions",
		metric.WithDescription("Number of live agent sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxcal.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFunctionCall records one agent function dispatch with its duration
// and outcome status.
func (m *Metrics) RecordFunctionCall(ctx context.Context, function, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("function", function),
		attribute.String("status", status),
	)
	m.FunctionCalls.Add(ctx, 1, attrs)
	m.FunctionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("function", function),
	))
}

// RecordBooking records one booking outcome ("booked" or "failed").
func (m *Metrics) RecordBooking(ctx context.Context, status string) {
	m.Bookings.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordResolve records one start-time resolution: its duration always, and
// a failure counter increment when kind is non-empty.
func (m *Metrics) RecordResolve(ctx context.Context, d time.Duration, kind string) {
	m.ResolveDuration.Record(ctx, d.Seconds())
	if kind != "" {
		m.ResolveFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// RecordSessionEvent records one agent session event by protocol type.
func (m *Metrics) RecordSessionEvent(ctx context.Context, eventType string) {
	m.SessionEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordReconnect records one reconnection attempt.
func (m *Metrics) RecordReconnect(ctx context.Context) {
	m.SessionReconnects.Add(ctx, 1)
}
