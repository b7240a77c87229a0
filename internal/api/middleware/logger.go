package middleware

import (
	"time"

	"battery-scheduler/internal/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// Logger attaches a request-scoped slog logger to the request context and
// logs one line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		ctx := log.With(c.Request.Context(), "request_id", id)
		l := log.Ctx(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		l.InfoContext(ctx, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
