package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter is the sliding-window counter the repository implements
// over redis.
type Limiter interface {
	AllowRate(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit bounds authenticated API calls per user per minute. The
// limiter fails open: a broken redis must not take the API down with
// it.
func RateLimit(limiter Limiter, limit int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFromContext(c)
		if user == nil {
			c.Next()
			return
		}

		key := "ratelimit:user:" + user.ID.String()
		allowed, err := limiter.AllowRate(c.Request.Context(), key, limit, time.Minute)
		if err != nil {
			logger.Error("rate limit check failed",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			logger.Warn("rate limit hit",
				zap.String("user_id", user.ID.String()),
				zap.Int("limit", limit),
			)
			RecordRateLimitHit(user.ID.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, retry later",
				"limit": limit,
			})
			return
		}

		c.Next()
	}
}
