package middleware

import (
	"rillscope/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// routeParams are path parameters copied onto the request span.
var routeParams = map[string]attribute.Key{
	"room":   tracing.RoomIDKey,
	"name":   tracing.ChartKey,
	"id":     tracing.ResourceIDKey,
	"pid":    tracing.ParticipantIDKey,
	"action": tracing.ActionKey,
}

// TracingMiddleware opens a server span per request, continuing any trace
// carried in the request headers.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		parent := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracing.TraceHTTPRequest(parent, c.Request.Method, route)
		defer span.End()

		span.SetAttributes(attribute.String("http.client_ip", c.ClientIP()))
		for _, p := range c.Params {
			if key, ok := routeParams[p.Key]; ok {
				span.SetAttributes(key.String(p.Value))
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if subject := c.GetString(ContextKeySubject); subject != "" {
			span.SetAttributes(tracing.SubjectKey.String(subject))
		}
		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("http.response_size", max(c.Writer.Size(), 0)),
		)

		switch {
		case len(c.Errors) > 0:
			err := c.Errors.Last().Err
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= 500:
			span.SetStatus(codes.Error, "")
		}
	}
}
