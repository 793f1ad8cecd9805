package service

// Workspaces and campaigns. The two grouping constructs deliberately
// diverge on deletion: a workspace owns its links and takes them down
// with it, while a campaign is a reference grouping whose deletion
// merely detaches links. See DESIGN.md for the product sign-off note
// on that asymmetry.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
)

// CreateWorkspace adds a workspace under a team the requester
// administers.
func (s *Service) CreateWorkspace(ctx context.Context, teamID, requesterID uuid.UUID, name, color, icon string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: workspace name is required", ErrInvalidFormat)
	}
	if err := s.checkTeamRole(ctx, teamID, requesterID, model.RoleAdmin); err != nil {
		return nil, err
	}

	ws := &model.Workspace{
		ID:     uuid.New(),
		TeamID: teamID,
		Name:   name,
		Color:  color,
		Icon:   icon,
	}
	if err := s.repo.CreateWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	s.audit(requesterID, "workspace.create", "workspace", ws.ID.String(), name)
	return ws, nil
}

// ListWorkspaces returns a team's workspaces for any active member.
func (s *Service) ListWorkspaces(ctx context.Context, teamID, requesterID uuid.UUID) ([]model.Workspace, error) {
	if err := s.checkTeamRole(ctx, teamID, requesterID, model.RoleMember); err != nil {
		return nil, err
	}
	return s.repo.ListWorkspacesByTeam(ctx, teamID)
}

// UpdateWorkspace renames or restyles a workspace.
func (s *Service) UpdateWorkspace(ctx context.Context, workspaceID, requesterID uuid.UUID, name, color, icon string) (*model.Workspace, error) {
	ws, err := s.repo.GetWorkspaceByID(ctx, workspaceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if err := s.checkTeamRole(ctx, ws.TeamID, requesterID, model.RoleAdmin); err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		ws.Name = name
	}
	if color != "" {
		ws.Color = color
	}
	if icon != "" {
		ws.Icon = icon
	}
	if err := s.repo.UpdateWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("update workspace: %w", err)
	}
	return ws, nil
}

// WorkspaceLinks lists the links a workspace owns.
func (s *Service) WorkspaceLinks(ctx context.Context, workspaceID, requesterID uuid.UUID) ([]model.Link, error) {
	if err := s.checkWorkspaceRole(ctx, workspaceID, requesterID, model.RoleMember); err != nil {
		return nil, err
	}
	return s.repo.ListLinksByWorkspace(ctx, workspaceID)
}

// DeleteWorkspace removes a workspace and the links it owns.
func (s *Service) DeleteWorkspace(ctx context.Context, workspaceID, requesterID uuid.UUID) error {
	ws, err := s.repo.GetWorkspaceByID(ctx, workspaceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	if err := s.checkTeamRole(ctx, ws.TeamID, requesterID, model.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteWorkspace(ctx, workspaceID); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	s.audit(requesterID, "workspace.delete", "workspace", workspaceID.String(), ws.Name)
	return nil
}

// ==================== campaigns ====================

// CreateCampaign adds a campaign owned by the requester.
func (s *Service) CreateCampaign(ctx context.Context, requesterID uuid.UUID, name string) (*model.Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: campaign name is required", ErrInvalidFormat)
	}
	c := &model.Campaign{
		ID:     uuid.New(),
		UserID: requesterID,
		Name:   name,
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	s.audit(requesterID, "campaign.create", "campaign", c.ID.String(), name)
	return c, nil
}

// ListCampaigns returns the requester's campaigns.
func (s *Service) ListCampaigns(ctx context.Context, requesterID uuid.UUID) ([]model.Campaign, error) {
	return s.repo.ListCampaignsByUser(ctx, requesterID)
}

// CampaignLinks lists the links grouped under a campaign the
// requester owns.
func (s *Service) CampaignLinks(ctx context.Context, campaignID, requesterID uuid.UUID) ([]model.Link, error) {
	c, err := s.repo.GetCampaignByID(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if c.UserID != requesterID {
		return nil, ErrNotFound
	}
	return s.repo.ListLinksByCampaign(ctx, campaignID)
}

// DeleteCampaign removes a campaign; its links remain but are
// unlinked.
func (s *Service) DeleteCampaign(ctx context.Context, campaignID, requesterID uuid.UUID) error {
	c, err := s.repo.GetCampaignByID(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	if c.UserID != requesterID {
		return ErrNotFound
	}
	if err := s.repo.DeleteCampaign(ctx, campaignID); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	s.audit(requesterID, "campaign.delete", "campaign", campaignID.String(), c.Name)
	return nil
}
