package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "rillscope", cfg.ServiceName)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
}

func TestInitDisabledIsNoop(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceHelpersNameSpans(t *testing.T) {
	rec := installRecorder(t)
	ctx := context.Background()

	_, span := TraceTick(ctx, "room-1", 7)
	span.End()
	_, span = TraceStatsFetch(ctx, "room_stats", "room-1")
	span.End()
	_, span = TraceHistoryFetch(ctx, "room-1", "24h")
	span.End()
	_, span = TraceExport(ctx, "room-1", "file")
	span.End()
	_, span = TraceHTTPRequest(ctx, "GET", "/api/v1/rooms/:room/dashboard")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 5)
	names := make([]string, 0, len(ended))
	for _, s := range ended {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"poller.tick", "stats.room_stats", "history.fetch", "export.deliver", "GET /api/v1/rooms/:room/dashboard"}, names)

	var gen int64
	for _, kv := range ended[0].Attributes() {
		if kv.Key == GenerationKey {
			gen = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(7), gen)
}

func TestRecordErrorMarksSpan(t *testing.T) {
	rec := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "test")
	RecordError(ctx, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
}
