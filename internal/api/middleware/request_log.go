package middleware

import (
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs HTTP request/response metadata.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)

		if logger != nil {
			logger.Info("http request",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.Int("status", status),
				slog.String("client_ip", c.ClientIP()),
				slog.String("latency", latency.String()),
			)
		}
	}
}
