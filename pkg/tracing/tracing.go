package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "rillscope"

// TracerProvider wraps OpenTelemetry tracer provider
type TracerProvider struct {
	tp *tracesdk.TracerProvider
}

// Config configures tracing.
type Config struct {
	Enabled     bool
	ServiceName string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

// DefaultConfig returns a disabled Jaeger config with full sampling.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "rillscope",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// Init installs a Jaeger-exporting tracer provider. With tracing disabled
// the global no-op provider stays in place.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a span with the rillscope tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// AddSpanAttributes adds attributes to the span in ctx.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError records err on the current span and marks it failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	RoomIDKey        = attribute.Key("room.id")
	RangeKey         = attribute.Key("range")
	SourceKey        = attribute.Key("source")
	GenerationKey    = attribute.Key("generation")
	SinkKey          = attribute.Key("export.sink")
	ChartKey         = attribute.Key("chart.name")
	ResourceIDKey    = attribute.Key("resource.id")
	ParticipantIDKey = attribute.Key("participant.id")
	ActionKey        = attribute.Key("moderation.action")
	SubjectKey       = attribute.Key("auth.subject")
)

// TraceHTTPRequest spans a request by method and route template.
func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return StartSpan(ctx, method+" "+route,
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// TraceTick spans one poll cycle of the metrics poller.
func TraceTick(ctx context.Context, roomID string, generation uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, "poller.tick",
		trace.WithAttributes(
			RoomIDKey.String(roomID),
			GenerationKey.Int64(int64(generation)),
		),
	)
}

// TraceStatsFetch spans a single call to the stats provider.
func TraceStatsFetch(ctx context.Context, source, roomID string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("stats.%s", source),
		trace.WithAttributes(
			SourceKey.String(source),
			RoomIDKey.String(roomID),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// TraceHistoryFetch starts a span for a historical analytics fetch.
func TraceHistoryFetch(ctx context.Context, roomID, rng string) (context.Context, trace.Span) {
	return StartSpan(ctx, "history.fetch",
		trace.WithAttributes(
			RoomIDKey.String(roomID),
			RangeKey.String(rng),
		),
	)
}

// TraceExport starts a span for an export.
func TraceExport(ctx context.Context, roomID, sink string) (context.Context, trace.Span) {
	return StartSpan(ctx, "export.deliver",
		trace.WithAttributes(
			RoomIDKey.String(roomID),
			SinkKey.String(sink),
		),
	)
}
