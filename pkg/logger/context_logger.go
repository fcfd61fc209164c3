package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	requestIDKey contextKey = "request_id"
	roomIDKey    contextKey = "room_id"
)

var contextKeys = []contextKey{requestIDKey, traceIDKey, roomIDKey}

// WithTraceID stores the trace id in ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRoomID stores the room id in ctx.
func WithRoomID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, roomIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextLogger tags log lines with the ids carried in a context.
type ContextLogger struct {
	logger *zap.Logger
}

// NewContextLogger wraps logger. A nil logger logs nothing.
func NewContextLogger(logger *zap.Logger) *ContextLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextLogger{logger: logger}
}

// For returns the logger with the request, trace and room ids found in ctx.
func (cl *ContextLogger) For(ctx context.Context) *zap.Logger {
	var fields []zapcore.Field
	for _, key := range contextKeys {
		if id, ok := ctx.Value(key).(string); ok && id != "" {
			fields = append(fields, zap.String(string(key), id))
		}
	}
	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// RequestLog describes one completed HTTP request.
type RequestLog struct {
	Method   string
	Route    string
	Path     string
	Status   int
	Bytes    int
	Duration time.Duration
	Subject  string
	Err      error
}

// LogRequest logs a completed request. Server errors log at error level,
// client errors at warn and everything else at info.
func (cl *ContextLogger) LogRequest(ctx context.Context, r RequestLog) {
	fields := []zapcore.Field{
		zap.String("method", r.Method),
		zap.String("path", r.Path),
		zap.Int("status_code", r.Status),
		zap.Int("bytes", max(r.Bytes, 0)),
		zap.Int64("duration_ms", r.Duration.Milliseconds()),
	}
	if r.Route != "" {
		fields = append(fields, zap.String("route", r.Route))
	}
	if r.Subject != "" {
		fields = append(fields, zap.String("subject", r.Subject))
	}
	if r.Err != nil {
		fields = append(fields, zap.Error(r.Err))
	}

	l := cl.For(ctx)
	switch {
	case r.Status >= 500:
		l.Error("http_request", fields...)
	case r.Status >= 400:
		l.Warn("http_request", fields...)
	default:
		l.Info("http_request", fields...)
	}
}
