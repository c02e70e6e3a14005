package logging

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderCorrelationID is echoed back on every response
const HeaderCorrelationID = "X-Correlation-ID"

// Middleware attaches a correlation id to the request context and logs one
// line per request.
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := c.Request.Context()
		if id := c.GetHeader(HeaderCorrelationID); id != "" {
			ctx = ContextWithCorrelationID(ctx, id)
		} else {
			ctx = WithCorrelationID(ctx)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderCorrelationID, GetCorrelationID(ctx))

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error(ctx, "request", args...)
		case status >= 400:
			logger.Warn(ctx, "request", args...)
		default:
			logger.Info(ctx, "request", args...)
		}
	}
}
