package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
	"github.com/Purplemerit/linkshortner-sub000/internal/model"
)

type workspaceRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// CreateWorkspace handles POST /api/v1/teams/:teamId/workspaces.
func (h *Handler) CreateWorkspace(c *gin.Context) {
	user := middleware.UserFromContext(c)
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.svc.CreateWorkspace(c.Request.Context(), teamID, user.ID, req.Name, req.Color, req.Icon)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

// ListWorkspaces handles GET /api/v1/teams/:teamId/workspaces.
func (h *Handler) ListWorkspaces(c *gin.Context) {
	user := middleware.UserFromContext(c)
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	workspaces, err := h.svc.ListWorkspaces(c.Request.Context(), teamID, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": workspaces})
}

// UpdateWorkspace handles PATCH /api/v1/workspaces/:workspaceId.
func (h *Handler) UpdateWorkspace(c *gin.Context) {
	user := middleware.UserFromContext(c)
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.svc.UpdateWorkspace(c.Request.Context(), workspaceID, user.ID, req.Name, req.Color, req.Icon)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// DeleteWorkspace handles DELETE /api/v1/workspaces/:workspaceId.
// Deleting a workspace deletes the links it owns.
func (h *Handler) DeleteWorkspace(c *gin.Context) {
	user := middleware.UserFromContext(c)
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.svc.DeleteWorkspace(c.Request.Context(), workspaceID, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// WorkspaceLinks handles GET /api/v1/workspaces/:workspaceId/links.
func (h *Handler) WorkspaceLinks(c *gin.Context) {
	user := middleware.UserFromContext(c)
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	links, err := h.svc.WorkspaceLinks(c.Request.Context(), workspaceID, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]*model.LinkResponse, len(links))
	for i := range links {
		responses[i] = h.toLinkResponse(&links[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": responses})
}

// CreateCampaign handles POST /api/v1/campaigns.
func (h *Handler) CreateCampaign(c *gin.Context) {
	user := middleware.UserFromContext(c)

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, err := h.svc.CreateCampaign(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// ListCampaigns handles GET /api/v1/campaigns.
func (h *Handler) ListCampaigns(c *gin.Context) {
	user := middleware.UserFromContext(c)

	campaigns, err := h.svc.ListCampaigns(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": campaigns})
}

// CampaignLinks handles GET /api/v1/campaigns/:campaignId/links.
func (h *Handler) CampaignLinks(c *gin.Context) {
	user := middleware.UserFromContext(c)
	campaignID, err := uuid.Parse(c.Param("campaignId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	links, err := h.svc.CampaignLinks(c.Request.Context(), campaignID, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]*model.LinkResponse, len(links))
	for i := range links {
		responses[i] = h.toLinkResponse(&links[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": responses})
}

// DeleteCampaign handles DELETE /api/v1/campaigns/:campaignId. Links
// in the campaign survive, detached.
func (h *Handler) DeleteCampaign(c *gin.Context) {
	user := middleware.UserFromContext(c)
	campaignID, err := uuid.Parse(c.Param("campaignId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.svc.DeleteCampaign(c.Request.Context(), campaignID, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
