package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
	"github.com/Purplemerit/linkshortner-sub000/internal/service"
)

// visitorFrom derives the analytics attributes from the request.
// Country comes from the edge proxy header; the raw IP is hashed
// downstream and never persisted.
func visitorFrom(c *gin.Context) service.Visitor {
	country := c.GetHeader("CF-IPCountry")
	if country == "" {
		country = c.GetHeader("X-Geo-Country")
	}
	if country == "" {
		country = "Unknown"
	}
	return service.Visitor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		Country:   country,
	}
}

// Redirect handles GET /:code, the hot path. NOT_FOUND and EXPIRED
// both surface as the same generic failure so visitors cannot probe
// which codes exist.
func (h *Handler) Redirect(c *gin.Context) {
	code := c.Param("code")

	res, err := h.svc.Resolve(c.Request.Context(), h.hostDomain(c), code, "", visitorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	middleware.RecordResolution(string(res.Outcome))

	switch res.Outcome {
	case service.OutcomeRedirect:
		c.Redirect(http.StatusFound, res.Destination)
	case service.OutcomePasswordRequired:
		c.JSON(http.StatusUnauthorized, gin.H{"password_required": true, "code": code})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found or no longer available"})
	}
}

// SubmitPassword handles POST /:code with a password body, the gate's
// recoverable retry path.
func (h *Handler) SubmitPassword(c *gin.Context) {
	code := c.Param("code")

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	res, err := h.svc.Resolve(c.Request.Context(), h.hostDomain(c), code, req.Password, visitorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	middleware.RecordResolution(string(res.Outcome))

	switch res.Outcome {
	case service.OutcomeRedirect:
		c.JSON(http.StatusOK, gin.H{"destination": res.Destination})
	case service.OutcomePasswordRequired:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect password"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found or no longer available"})
	}
}

// ValidatePassword handles POST /api/v1/links/validate-password, the
// JSON-client variant of the gate: the code is named in the body
// instead of the path, and a success returns the destination rather
// than a redirect.
func (h *Handler) ValidatePassword(c *gin.Context) {
	var req struct {
		Domain   string `json:"domain"`
		Code     string `json:"code" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and password are required"})
		return
	}

	res, err := h.svc.Resolve(c.Request.Context(), req.Domain, req.Code, req.Password, visitorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	middleware.RecordResolution(string(res.Outcome))

	switch res.Outcome {
	case service.OutcomeRedirect:
		c.JSON(http.StatusOK, gin.H{"valid": true, "destination": res.Destination})
	case service.OutcomePasswordRequired:
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "incorrect password"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found or no longer available"})
	}
}

// AnonymousShorten handles POST /api/v1/public/shorten: no account,
// no custom code, 24 hour lifetime.
func (h *Handler) AnonymousShorten(c *gin.Context) {
	var req struct {
		Destination string `json:"destination" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.svc.CreateAnonymousLink(c.Request.Context(), req.Destination)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.toLinkResponse(link))
}

// Register handles POST /api/v1/public/register: provisions the local
// account projection and returns the API key exactly once.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, apiKey, err := h.svc.RegisterUser(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"api_key": apiKey,
	})
}

// hostDomain maps the request's Host header to a link domain. The
// platform's own host resolves the default domain namespace; any
// other host is treated as a custom domain and resolves its own.
func (h *Handler) hostDomain(c *gin.Context) string {
	host := stripPort(c.Request.Host)
	if host == "" || host == "localhost" || host == "127.0.0.1" {
		return ""
	}
	if base, err := url.Parse(h.baseURL); err == nil && stripPort(base.Host) == host {
		return ""
	}
	return host
}

func stripPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
