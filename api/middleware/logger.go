package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/relaxr-go/pkg/logger"
	"go.uber.org/zap"
)

// Logger returns a gin middleware for logging. Server errors also go to the
// error category log when errorLog is set.
func Logger(log *zap.Logger, errorLog *logger.MultiLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", strings.TrimSpace(c.Errors.String())))
		}

		// health probes are noisy
		if path == "/health" || path == "/ready" {
			log.Debug("HTTP request", fields...)
		} else {
			log.Info("HTTP request", fields...)
		}

		if statusCode >= 500 && errorLog != nil {
			errorLog.LogAppError("HTTP error response", fields...)
		}
	}
}
