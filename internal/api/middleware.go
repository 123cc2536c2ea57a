package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
)

// RequestIDMiddleware adds a unique request ID to each request and carries it
// in the request context so component logs share it
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)

		corr := c.GetHeader("X-Correlation-ID")
		if corr == "" {
			corr = logging.NewCorrelationID()
		}
		c.Header("X-Correlation-ID", corr)

		ctx := logging.WithRequestID(c.Request.Context(), id)
		ctx = logging.WithCorrelationID(ctx, corr)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// LoggingMiddleware logs every request through the structured logger
func LoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.LogRequest(c.Request.Context(), c.Request.Method, path,
			c.Request.UserAgent(), c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}

// ErrorHandlingMiddleware recovers panics into a 500 response
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, _ interface{}) {
		InternalErrorResponse(c, "Internal server error")
		c.Abort()
	})
}
