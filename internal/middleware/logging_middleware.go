package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/quickcart-backend/pkg/logger"
)

const (
	RequestIDHeader = "X-Request-ID"

	ctxLoggerKey    = "logger"
	ctxRequestIDKey = "request_id"
)

// LoggingMiddleware gives every request an id and a scoped logger, then
// writes one access line when the handlers return. Requests to a quiet
// path that succeed are only logged at debug level.
func LoggingMiddleware(quiet ...string) gin.HandlerFunc {
	quietPaths := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietPaths[p] = true
	}

	return func(c *gin.Context) {
		started := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		log := logger.WithContext(map[string]interface{}{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})
		c.Set(ctxRequestIDKey, id)
		c.Set(ctxLoggerKey, log)
		c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), log))

		c.Next()

		status := c.Writer.Status()
		access := map[string]interface{}{
			"status_code": status,
			"latency_ms":  time.Since(started).Milliseconds(),
			"ip":          c.ClientIP(),
			"bytes":       c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			access["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			log.Error("Request failed", nil, access)
		case status >= 400:
			log.Warn("Request rejected", access)
		case quietPaths[c.Request.URL.Path]:
			log.Debug("Request served", access)
		default:
			log.Info("Request served", access)
		}
	}
}

// GetLoggerFromContext returns the request logger, or the global one
// outside of LoggingMiddleware
func GetLoggerFromContext(c *gin.Context) *logger.Logger {
	if l, ok := c.Value(ctxLoggerKey).(*logger.Logger); ok {
		return l
	}
	return logger.Get()
}

// GetRequestID returns the id assigned by LoggingMiddleware
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestIDKey)
}
