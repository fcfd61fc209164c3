package middleware

import (
	"time"

	"rillscope/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const HeaderRequestID = "X-Request-ID"

// RequestLoggingMiddleware tags the request context with request and room
// ids and logs each completed request. The trace id is picked up from
// whatever span later middleware opened.
func RequestLoggingMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		if room := c.Param("room"); room != "" {
			ctx = logger.WithRoomID(ctx, room)
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		ctx = c.Request.Context()
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			ctx = logger.WithTraceID(ctx, sc.TraceID().String())
		}

		entry := logger.RequestLog{
			Method:   c.Request.Method,
			Route:    c.FullPath(),
			Path:     c.Request.URL.Path,
			Status:   c.Writer.Status(),
			Bytes:    c.Writer.Size(),
			Duration: time.Since(start),
			Subject:  c.GetString(ContextKeySubject),
		}
		if len(c.Errors) > 0 {
			entry.Err = c.Errors.Last().Err
		}
		cl.LogRequest(ctx, entry)
	}
}
