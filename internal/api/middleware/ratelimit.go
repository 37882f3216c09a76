package middleware

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"taskkeeper/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware 对认证类接口按客户端 IP 限流。
//
// Redis 不可用时失败开放：记一条 Warn 日志后放行，
// 限流器故障不应该把登录一起拖垮。
func RateLimitMiddleware(limiter *ratelimit.RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		allowed, err := limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("ratelimit check failed, failing open",
					slog.String("client_ip", c.ClientIP()),
					slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
