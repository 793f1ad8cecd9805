package service

// Team management: creation, invitations, the invited→active claim,
// and member removal.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Purplemerit/linkshortner-sub000/internal/model"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
)

// CreateTeam creates a team with the creator as its owner. The owner
// membership is written in the same transaction as the team, and this
// is the only place the owner role is ever assigned.
func (s *Service) CreateTeam(ctx context.Context, creatorID uuid.UUID, name string) (*model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrInvalidFormat)
	}

	now := s.now()
	team := &model.Team{
		ID:      uuid.New(),
		Name:    name,
		OwnerID: creatorID,
	}
	owner := &model.TeamMember{
		ID:        uuid.New(),
		TeamID:    team.ID,
		UserID:    &creatorID,
		Role:      model.RoleOwner,
		Status:    model.MemberActive,
		InvitedBy: creatorID,
		InvitedAt: now,
		JoinedAt:  &now,
	}
	if err := s.repo.CreateTeam(ctx, team, owner); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}

	s.audit(creatorID, "team.create", "team", team.ID.String(), name)
	s.logger.Info("team created",
		zap.String("team_id", team.ID.String()),
		zap.String("owner_id", creatorID.String()),
	)
	return team, nil
}

// ListTeams returns every team the requester actively belongs to.
func (s *Service) ListTeams(ctx context.Context, requesterID uuid.UUID) ([]model.Team, error) {
	return s.repo.ListTeamsByUser(ctx, requesterID)
}

// GetTeam returns a team the requester belongs to.
func (s *Service) GetTeam(ctx context.Context, teamID, requesterID uuid.UUID) (*model.Team, error) {
	team, err := s.repo.GetTeamByID(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}
	if err := s.checkTeamRole(ctx, teamID, requesterID, model.RoleMember); err != nil {
		// Non-members learn nothing about the team's existence.
		return nil, ErrNotFound
	}
	return team, nil
}

// Invite adds an email to the team. If the address already belongs to
// a signed-up user the membership activates immediately; otherwise a
// pending row is created and the invite email goes out. Mail transport
// failure is recovered by handing the invite link back to the caller.
func (s *Service) Invite(ctx context.Context, teamID, inviterID uuid.UUID, req *model.InviteRequest) (*model.InviteResponse, error) {
	team, err := s.repo.GetTeamByID(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load team: %w", err)
	}

	role := model.RoleMember
	if req.Role != "" {
		role, err = model.ParseRole(req.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	}

	// All transition rules live in the guard: inviter role, assignable
	// roles, and the owner-plan seat ceiling.
	if err := s.validateInvite(ctx, team, inviterID, role); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	now := s.now()

	if existing, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		if _, err := s.repo.GetTeamMember(ctx, teamID, existing.ID); err == nil {
			return nil, ErrAlreadyMember
		}
		member := &model.TeamMember{
			ID:        uuid.New(),
			TeamID:    teamID,
			UserID:    &existing.ID,
			Role:      role,
			Status:    model.MemberActive,
			InvitedBy: inviterID,
			InvitedAt: now,
			JoinedAt:  &now,
		}
		if err := s.repo.CreateTeamMember(ctx, member); err != nil {
			return nil, fmt.Errorf("add member: %w", err)
		}
		s.audit(inviterID, "team.member_add", "team", teamID.String(), email)
		return &model.InviteResponse{MemberID: member.ID, EmailSent: false}, nil
	}

	if _, err := s.repo.FindInviteByEmail(ctx, teamID, email); err == nil {
		return nil, ErrAlreadyMember
	}

	member := &model.TeamMember{
		ID:           uuid.New(),
		TeamID:       teamID,
		InvitedEmail: &email,
		Role:         role,
		Status:       model.MemberInvited,
		InvitedBy:    inviterID,
		InvitedAt:    now,
	}
	if err := s.repo.CreateTeamMember(ctx, member); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	inviteLink := fmt.Sprintf("%s/teams/join?invite=%s", s.baseURL, member.ID)
	subject := fmt.Sprintf("You've been invited to join %s", team.Name)
	body := fmt.Sprintf(`<p>You've been invited to join the team <b>%s</b>.</p><p><a href="%s">Accept invitation</a></p>`, team.Name, inviteLink)

	resp := &model.InviteResponse{MemberID: member.ID}
	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		s.logger.Warn("invite email failed, returning link to caller",
			zap.String("team_id", teamID.String()), zap.Error(err))
		resp.InviteLink = inviteLink
	} else {
		resp.EmailSent = true
	}

	s.audit(inviterID, "team.invite", "team", teamID.String(), email)
	return resp, nil
}

// ClaimInvites transitions every pending invite addressed to the
// user's verified email to active. Each transition is a compare-and-
// swap conditioned on the row still being invited, so a concurrent
// claimer (sign-up sync racing a manual accept) loses cleanly: zero
// rows updated, no double-join.
func (s *Service) ClaimInvites(ctx context.Context, userID uuid.UUID, email string) (int, error) {
	invites, err := s.repo.FindPendingInvites(ctx, strings.ToLower(email))
	if err != nil {
		return 0, fmt.Errorf("find invites: %w", err)
	}

	claimed := 0
	for _, invite := range invites {
		won, err := s.repo.ClaimInvite(ctx, invite.ID, userID, s.now())
		if err != nil {
			return claimed, fmt.Errorf("claim invite %s: %w", invite.ID, err)
		}
		if won {
			claimed++
			s.logger.Info("team invite claimed",
				zap.String("team_id", invite.TeamID.String()),
				zap.String("user_id", userID.String()),
			)
		}
	}
	return claimed, nil
}

// ClaimInviteByID accepts a single invitation from the invite link.
// The claimant's verified email must match the invited address.
func (s *Service) ClaimInviteByID(ctx context.Context, memberID, userID uuid.UUID) error {
	member, err := s.repo.GetTeamMemberByID(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load invite: %w", err)
	}

	pending, ok := member.Membership().(model.Pending)
	if !ok {
		// Already claimed; treat the repeat as a no-op success.
		if joined, isJoined := member.Membership().(model.Joined); isJoined && joined.UserID == userID {
			return nil
		}
		return ErrNotFound
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !strings.EqualFold(user.Email, pending.InvitedEmail) {
		return ErrForbidden
	}

	won, err := s.repo.ClaimInvite(ctx, memberID, userID, s.now())
	if err != nil {
		return fmt.Errorf("claim invite: %w", err)
	}
	if !won {
		// Raced a concurrent claim; the row is active now either way.
		return nil
	}
	return nil
}

// RemoveMember deletes a membership. Owners cannot be removed, and
// removal requires admin-or-better on the team.
func (s *Service) RemoveMember(ctx context.Context, teamID, memberID, requesterID uuid.UUID) error {
	if err := s.checkTeamRole(ctx, teamID, requesterID, model.RoleAdmin); err != nil {
		return err
	}

	member, err := s.repo.GetTeamMemberByID(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if member.TeamID != teamID {
		return ErrNotFound
	}
	if member.Role == model.RoleOwner {
		return ErrForbidden
	}

	if err := s.repo.DeleteTeamMember(ctx, memberID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.audit(requesterID, "team.member_remove", "team", teamID.String(), memberID.String())
	return nil
}
