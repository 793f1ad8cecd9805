package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
	"github.com/Purplemerit/linkshortner-sub000/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	svc    *service.Service
	repo   *repository.Repository
}

type nopMailer struct{}

func (nopMailer) Send(ctx context.Context, to, subject, html string) error { return nil }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := repository.New(db, nil, zap.NewNop())
	require.NoError(t, repo.AutoMigrate())

	svc, err := service.New(repo, nopMailer{}, "https://example.com", zap.NewNop())
	require.NoError(t, err)

	h := New(svc, repo, "https://example.com", 100, zap.NewNop())
	router := gin.New()
	h.RegisterRoutes(router)

	return &testEnv{router: router, svc: svc, repo: repo}
}

func (e *testEnv) do(method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerUser(t *testing.T, email string) (userID uuid.UUID, apiKey string) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/public/register", "", gin.H{"email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID     uuid.UUID `json:"id"`
		APIKey string    `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID, resp.APIKey
}

func TestHealthProbes(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "", nil).Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/links", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/links", "bogus-key", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t)
	_, apiKey := env.registerUser(t, "bearer@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "Authorization: Bearer is accepted alongside X-API-Key")
}

func TestCreateAndRedirectFlow(t *testing.T) {
	env := newTestEnv(t)
	_, apiKey := env.registerUser(t, "flow@example.com")

	w := env.do(http.MethodPost, "/api/v1/links", apiKey, gin.H{
		"destination": "https://example.org/landing",
		"custom_code": "launch",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "launch", created.ShortCode)
	assert.Equal(t, "https://example.com/launch", created.ShortURL)

	// Same code again is a conflict.
	w = env.do(http.MethodPost, "/api/v1/links", apiKey, gin.H{
		"destination": "https://example.org/other",
		"custom_code": "launch",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The public redirect.
	w = env.do(http.MethodGet, "/launch", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.org/landing", w.Header().Get("Location"))

	// Unknown codes get the generic failure.
	w = env.do(http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	notFoundBody := w.Body.String()

	// A paused link is indistinguishable from an absent one.
	w = env.do(http.MethodPatch, "/api/v1/links/"+created.ID.String(), apiKey, gin.H{"active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/launch", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, notFoundBody, w.Body.String())
}

func TestPasswordGateOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	userID, apiKey := env.registerUser(t, "gate@example.com")

	require.NoError(t, env.repo.CreateSubscription(context.Background(), &model.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		Plan:      "STARTER",
		Status:    "ACTIVE",
		StartDate: time.Now().Add(-time.Hour),
	}))

	w := env.do(http.MethodPost, "/api/v1/links", apiKey, gin.H{
		"destination": "https://example.org/secret",
		"custom_code": "vault",
		"password":    "hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/vault", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "password_required")

	w = env.do(http.MethodPost, "/vault", "", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/vault", "", gin.H{"password": "hunter2"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://example.org/secret")

	// The JSON-client variant names the code in the body.
	w = env.do(http.MethodPost, "/api/v1/links/validate-password", "", gin.H{
		"code":     "vault",
		"password": "hunter2",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	w = env.do(http.MethodPost, "/api/v1/links/validate-password", "", gin.H{
		"code":     "vault",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnonymousShorten(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/public/shorten", "", gin.H{
		"destination": "https://example.org/quick",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotNil(t, created.ExpiresAt, "anonymous links always expire")

	w = env.do(http.MethodGet, "/"+created.ShortCode, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.org/quick", w.Header().Get("Location"))
}

func TestPlanLimitMapsToUpgrade(t *testing.T) {
	env := newTestEnv(t)
	_, apiKey := env.registerUser(t, "limit@example.com")

	// Password protection is a paid feature; the free tier's rejection
	// carries the upgrade flag.
	w := env.do(http.MethodPost, "/api/v1/links", apiKey, gin.H{
		"destination": "https://example.org/secret",
		"password":    "hunter2",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"upgrade":true`)
}

func TestCheckAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, apiKey := env.registerUser(t, "avail@example.com")

	w := env.do(http.MethodGet, "/api/v1/links/check-availability?code=fresh", apiKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":true`)

	w = env.do(http.MethodPost, "/api/v1/links", apiKey, gin.H{
		"destination": "https://example.org/landing",
		"custom_code": "fresh",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/api/v1/links/check-availability?code=fresh", apiKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":false`)

	w = env.do(http.MethodGet, "/api/v1/links/check-availability?code=a", apiKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkQR(t *testing.T) {
	env := newTestEnv(t)
	_, apiKey := env.registerUser(t, "qr@example.com")

	w := env.do(http.MethodPost, "/api/v1/links", apiKey, gin.H{
		"destination": "https://example.org/landing",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created model.LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(http.MethodGet, "/api/v1/links/"+created.ID.String()+"/qr", apiKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}
