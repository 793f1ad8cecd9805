package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
	"github.com/Purplemerit/linkshortner-sub000/internal/model"
)

// toLinkResponse shapes a link for the dashboard, including the full
// short URL.
func (h *Handler) toLinkResponse(link *model.Link) *model.LinkResponse {
	tags := []string{}
	if link.Tags != "" {
		tags = strings.Split(link.Tags, ",")
	}
	shortURL := "https://" + link.Domain + "/" + link.ShortCode
	if link.Domain == model.DefaultDomain && h.baseURL != "" {
		shortURL = h.baseURL + "/" + link.ShortCode
	}
	return &model.LinkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		Domain:      link.Domain,
		ShortURL:    shortURL,
		Destination: link.Destination,
		Tags:        tags,
		Notes:       link.Notes,
		Active:      link.Active,
		Protected:   link.HasPassword(),
		Clicks:      link.Clicks,
		ExpiresAt:   link.ExpiresAt,
		MaxClicks:   link.MaxClicks,
		WorkspaceID: link.WorkspaceID,
		CampaignID:  link.CampaignID,
		CreatedAt:   link.CreatedAt,
	}
}

// CreateLink handles POST /api/v1/links.
func (h *Handler) CreateLink(c *gin.Context) {
	user := middleware.UserFromContext(c)

	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.svc.CreateLink(c.Request.Context(), user.ID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	middleware.RecordLinkCreated()
	c.JSON(http.StatusCreated, h.toLinkResponse(link))
}

// ListLinks handles GET /api/v1/links?page=1&page_size=20.
func (h *Handler) ListLinks(c *gin.Context) {
	user := middleware.UserFromContext(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	links, total, err := h.svc.ListLinks(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]*model.LinkResponse, len(links))
	for i := range links {
		responses[i] = h.toLinkResponse(&links[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      responses,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetLink handles GET /api/v1/links/:id.
func (h *Handler) GetLink(c *gin.Context) {
	user := middleware.UserFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	link, err := h.svc.GetLink(c.Request.Context(), id, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toLinkResponse(link))
}

// UpdateLink handles PATCH /api/v1/links/:id.
func (h *Handler) UpdateLink(c *gin.Context) {
	user := middleware.UserFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req model.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.svc.UpdateLink(c.Request.Context(), id, user.ID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toLinkResponse(link))
}

// DeleteLink handles DELETE /api/v1/links/:id. Repeated deletes of
// the same id succeed.
func (h *Handler) DeleteLink(c *gin.Context) {
	user := middleware.UserFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.svc.DeleteLink(c.Request.Context(), id, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckAvailability handles GET /api/v1/links/check-availability?code=x&domain=y.
func (h *Handler) CheckAvailability(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	available, err := h.svc.CheckAvailability(c.Request.Context(), c.Query("domain"), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// LinkAnalytics handles GET /api/v1/links/:id/analytics.
func (h *Handler) LinkAnalytics(c *gin.Context) {
	user := middleware.UserFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	analytics, err := h.svc.LinkAnalytics(c.Request.Context(), id, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// LinkQR handles GET /api/v1/links/:id/qr and renders the short URL
// as a PNG.
func (h *Handler) LinkQR(c *gin.Context) {
	user := middleware.UserFromContext(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	link, err := h.svc.GetLink(c.Request.Context(), id, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	if size < 64 || size > 1024 {
		size = 256
	}

	png, err := qrcode.Encode(h.toLinkResponse(link).ShortURL, qrcode.Medium, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Usage handles GET /api/v1/usage/current.
func (h *Handler) Usage(c *gin.Context) {
	user := middleware.UserFromContext(c)
	usage, err := h.svc.Usage(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// ActivityLogs handles GET /api/v1/activity-logs?limit=50.
func (h *Handler) ActivityLogs(c *gin.Context) {
	user := middleware.UserFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.svc.ActivityLogs(c.Request.Context(), user.ID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
