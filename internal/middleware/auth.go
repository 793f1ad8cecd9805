// Package middleware implements the HTTP middleware chain: requester
// identification, per-user rate limiting, structured request logging
// and Prometheus metrics.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/service"
)

const userKey = "user"

// Auth resolves the request's API key to a user and injects it into
// the gin context. Identity itself lives with the external provider;
// the key is only the projection handle. Two header shapes are
// accepted:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
func Auth(svc *service.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		user, err := svc.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			logger.Warn("authentication failed",
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// UserFromContext returns the authenticated user, or nil on public
// routes.
func UserFromContext(c *gin.Context) *model.User {
	user, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	return user.(*model.User)
}
