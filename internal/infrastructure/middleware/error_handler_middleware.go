package middleware

import (
	"rillscope/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// abortWithError writes appErr in the API error shape and stops the chain.
func abortWithError(c *gin.Context, appErr *errors.AppError) {
	body := gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if len(appErr.Context) > 0 {
		body["details"] = appErr.Context
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}

// ErrorHandlerMiddleware renders the last error attached to the context.
// Errors are translated with rules; unmatched errors become 500s.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger, rules ...errors.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := errors.Translate(c.Errors.Last().Err, rules...)
		fields := []interface{}{
			"code", appErr.Code,
			"message", appErr.Message,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
		}
		if appErr.HTTPStatus >= 500 {
			logger.Errorw("application error", append(fields, "method", c.Request.Method, "error", appErr.Cause)...)
		} else {
			logger.Infow("request rejected", fields...)
		}

		abortWithError(c, appErr)
	}
}

// RecoveryMiddleware turns a panicking handler into a 500.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				abortWithError(c, errors.NewInternalError("internal error"))
			}
		}()

		c.Next()
	}
}
