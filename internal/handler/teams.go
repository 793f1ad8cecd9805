package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
	"github.com/Purplemerit/linkshortner-sub000/internal/model"
)

// CreateTeam handles POST /api/v1/teams.
func (h *Handler) CreateTeam(c *gin.Context) {
	user := middleware.UserFromContext(c)

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.svc.CreateTeam(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

// ListTeams handles GET /api/v1/teams.
func (h *Handler) ListTeams(c *gin.Context) {
	user := middleware.UserFromContext(c)

	teams, err := h.svc.ListTeams(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": teams})
}

// GetTeam handles GET /api/v1/teams/:teamId.
func (h *Handler) GetTeam(c *gin.Context) {
	user := middleware.UserFromContext(c)
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	team, err := h.svc.GetTeam(c.Request.Context(), teamID, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

// Invite handles POST /api/v1/teams/:teamId/invite. On mail transport
// failure the response carries the invite link for the caller to pass
// along manually.
func (h *Handler) Invite(c *gin.Context) {
	user := middleware.UserFromContext(c)
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req model.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Invite(c.Request.Context(), teamID, user.ID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ClaimInvite handles POST /api/v1/teams/claim with an invite id from
// the invitation link.
func (h *Handler) ClaimInvite(c *gin.Context) {
	user := middleware.UserFromContext(c)

	var req struct {
		InviteID string `json:"invite_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inviteID, err := uuid.Parse(req.InviteID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.svc.ClaimInviteByID(c.Request.Context(), inviteID, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveMember handles DELETE /api/v1/teams/:teamId/members/:memberId.
func (h *Handler) RemoveMember(c *gin.Context) {
	user := middleware.UserFromContext(c)
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	memberID, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), teamID, memberID, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
