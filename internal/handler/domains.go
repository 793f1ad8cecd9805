package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
)

// AddDomain handles POST /api/v1/domains.
func (h *Handler) AddDomain(c *gin.Context) {
	user := middleware.UserFromContext(c)

	var req struct {
		Domain string `json:"domain" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.svc.AddDomain(c.Request.Context(), user.ID, req.Domain)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"domain":     d,
		"txt_record": "shortly-verify=" + d.ID.String(),
	})
}

// ListDomains handles GET /api/v1/domains.
func (h *Handler) ListDomains(c *gin.Context) {
	user := middleware.UserFromContext(c)

	domains, err := h.svc.ListDomains(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": domains})
}

// VerifyDomain handles POST /api/v1/domains/:id/verify. One
// idempotent check per call; clients either poll it while DNS
// propagates or pass ?wait=true to block until the record shows up
// or the retry window runs out.
func (h *Handler) VerifyDomain(c *gin.Context) {
	user := middleware.UserFromContext(c)
	domainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	verify := h.svc.VerifyDomain
	if c.Query("wait") == "true" {
		verify = h.svc.AwaitVerification
	}
	d, err := verify(c.Request.Context(), domainID, user.ID, nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeleteDomain handles DELETE /api/v1/domains/:id.
func (h *Handler) DeleteDomain(c *gin.Context) {
	user := middleware.UserFromContext(c)
	domainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.svc.DeleteDomain(c.Request.Context(), domainID, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
