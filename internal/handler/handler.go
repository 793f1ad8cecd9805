// Package handler wires the REST surface. Handlers stay thin: bind,
// call the service, map the error taxonomy to a status code. The
// public redirect path lives in public.go.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
	"github.com/Purplemerit/linkshortner-sub000/internal/service"
)

// Handler holds the HTTP layer's dependencies.
type Handler struct {
	svc          *service.Service
	limiter      middleware.Limiter
	logger       *zap.Logger
	baseURL      string
	apiRateLimit int
}

func New(svc *service.Service, limiter middleware.Limiter, baseURL string, apiRateLimit int, logger *zap.Logger) *Handler {
	return &Handler{
		svc:          svc,
		limiter:      limiter,
		logger:       logger,
		baseURL:      baseURL,
		apiRateLimit: apiRateLimit,
	}
}

// RegisterRoutes attaches all endpoints:
//
//	/healthz /readyz /metrics  — infrastructure probes
//	/:code                     — public redirect (hot path)
//	POST /:code                — password gate submission
//	/api/v1/public/*           — unauthenticated API
//	/api/v1/*                  — authenticated API (auth → rate limit)
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.HealthCheck)
	r.GET("/readyz", h.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/:code", h.Redirect)
	r.POST("/:code", h.SubmitPassword)

	// Public despite the /api/v1 prefix: visitors unlock protected
	// links without an account.
	r.POST("/api/v1/links/validate-password", h.ValidatePassword)

	public := r.Group("/api/v1/public")
	{
		public.POST("/shorten", h.AnonymousShorten)
		public.POST("/register", h.Register)
	}

	api := r.Group("/api/v1")
	api.Use(
		middleware.Auth(h.svc, h.logger),
		middleware.RateLimit(h.limiter, h.apiRateLimit, h.logger),
	)
	{
		api.POST("/links", h.CreateLink)
		api.GET("/links", h.ListLinks)
		api.GET("/links/check-availability", h.CheckAvailability)
		api.GET("/links/:id", h.GetLink)
		api.PATCH("/links/:id", h.UpdateLink)
		api.DELETE("/links/:id", h.DeleteLink)
		api.GET("/links/:id/analytics", h.LinkAnalytics)
		api.GET("/links/:id/qr", h.LinkQR)

		api.POST("/teams", h.CreateTeam)
		api.GET("/teams", h.ListTeams)
		api.GET("/teams/:teamId", h.GetTeam)
		api.POST("/teams/:teamId/invite", h.Invite)
		api.POST("/teams/claim", h.ClaimInvite)
		api.DELETE("/teams/:teamId/members/:memberId", h.RemoveMember)

		api.POST("/teams/:teamId/workspaces", h.CreateWorkspace)
		api.GET("/teams/:teamId/workspaces", h.ListWorkspaces)
		api.PATCH("/workspaces/:workspaceId", h.UpdateWorkspace)
		api.DELETE("/workspaces/:workspaceId", h.DeleteWorkspace)
		api.GET("/workspaces/:workspaceId/links", h.WorkspaceLinks)

		api.POST("/campaigns", h.CreateCampaign)
		api.GET("/campaigns", h.ListCampaigns)
		api.GET("/campaigns/:campaignId/links", h.CampaignLinks)
		api.DELETE("/campaigns/:campaignId", h.DeleteCampaign)

		api.POST("/domains", h.AddDomain)
		api.GET("/domains", h.ListDomains)
		api.POST("/domains/:id/verify", h.VerifyDomain)
		api.DELETE("/domains/:id", h.DeleteDomain)

		api.GET("/usage/current", h.Usage)
		api.GET("/activity-logs", h.ActivityLogs)
	}
}

// ==================== probes ====================

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "link-registry"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.svc.HealthCheck(c.Request.Context()); err != nil {
		h.logger.Error("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ==================== error mapping ====================

// respondError maps the service error taxonomy onto HTTP statuses.
// Anything unmatched is a 500 with no internals leaked.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidFormat), errors.Is(err, service.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCodeTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "upgrade": true})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
	case errors.Is(err, service.ErrAllocationExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not allocate a code, retry"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
