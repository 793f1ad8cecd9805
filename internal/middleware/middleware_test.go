package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubLimiter scripts AllowRate responses.
type stubLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (s *stubLimiter) AllowRate(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.lastKey = key
	return s.allowed, s.err
}

func runWithUser(t *testing.T, limiter Limiter, user *model.User) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.GET("/ping",
		func(c *gin.Context) {
			if user != nil {
				c.Set(userKey, user)
			}
		},
		RateLimit(limiter, 10, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitAllows(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	limiter := &stubLimiter{allowed: true}

	w := runWithUser(t, limiter, user)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ratelimit:user:"+user.ID.String(), limiter.lastKey)
}

func TestRateLimitBlocks(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	w := runWithUser(t, &stubLimiter{allowed: false}, user)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit")
}

func TestRateLimitFailsOpen(t *testing.T) {
	user := &model.User{ID: uuid.New()}
	w := runWithUser(t, &stubLimiter{err: errors.New("redis down")}, user)
	assert.Equal(t, http.StatusOK, w.Code, "limiter errors never block requests")
}

func TestRateLimitSkipsAnonymous(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	w := runWithUser(t, limiter, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.lastKey, "no limiter call without a user")
}

func TestUserFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, UserFromContext(c))

	user := &model.User{ID: uuid.New()}
	c.Set(userKey, user)
	assert.Equal(t, user, UserFromContext(c))
}
