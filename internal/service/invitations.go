package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// InvitationService defines the notification inbox and project invitations.
type InvitationService interface {
	// Invite sends an invitation to each invitee not yet in the project and
	// returns how many were sent.
	Invite(ctx context.Context, caller model.Caller, projectID uuid.UUID, invitees []uuid.UUID) (int, error)
	// Answer accepts or declines a pending invitation addressed to the caller.
	Answer(ctx context.Context, caller model.Caller, notificationID uuid.UUID, accept bool) error
	List(ctx context.Context, caller model.Caller) ([]model.Notification, error)
	Remove(ctx context.Context, caller model.Caller, notificationID uuid.UUID) error
}

type InvitationServiceImpl struct {
	notifs   repository.NotificationRepository
	projects repository.ProjectRepository
	clients  repository.ClientRepository
	users    repository.UserRepository
	guard    *Guard
}

// NewInvitationService constructs InvitationService.
func NewInvitationService(
	notifs repository.NotificationRepository, projects repository.ProjectRepository,
	clients repository.ClientRepository, users repository.UserRepository, guard *Guard,
) *InvitationServiceImpl {
	return &InvitationServiceImpl{notifs: notifs, projects: projects, clients: clients, users: users, guard: guard}
}

// Invite requires ADMIN. Unknown users, current members, users already holding
// a pending invitation to the project and duplicates are skipped.
func (s *InvitationServiceImpl) Invite(ctx context.Context, caller model.Caller, projectID uuid.UUID, invitees []uuid.UUID) (int, error) {
	if _, err := s.guard.RequireProjectAdmin(ctx, caller.UserID, projectID); err != nil {
		return 0, err
	}
	if len(invitees) == 0 {
		v := errs.NewValidation()
		v.Add("invitees", "at least one user is required")
		return 0, v
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return 0, err
	}

	sent := 0
	seen := make(map[uuid.UUID]struct{}, len(invitees))
	for _, id := range invitees {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}

		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return sent, err
		}
		switch _, err := s.clients.GetByUser(ctx, id, projectID); {
		case err == nil:
			continue
		case !errors.Is(err, errs.ErrNotFound):
			return sent, err
		}
		pending, err := s.hasPendingInvite(ctx, id, projectID)
		if err != nil {
			return sent, err
		}
		if pending {
			continue
		}

		nid, err := uuid.NewV4()
		if err != nil {
			return sent, err
		}
		pid := projectID
		n := &model.Notification{
			ID:        nid,
			UserID:    id,
			SentByID:  caller.UserID,
			ProjectID: &pid,
			Message:   fmt.Sprintf("You have been invited to %s project", p.Name),
		}
		if err := s.notifs.Create(ctx, n); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Answer resolves the invitation, notifies the inviter and, on accept, adds
// the caller to the project as USER. An already answered invitation yields
// errs.ErrVersionConflict.
func (s *InvitationServiceImpl) Answer(ctx context.Context, caller model.Caller, notificationID uuid.UUID, accept bool) error {
	n, err := s.notifs.Get(ctx, notificationID, caller.UserID)
	if err != nil {
		return err
	}
	if !n.Pending() {
		return errs.ErrVersionConflict
	}
	u, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return err
	}

	verb := "declined"
	if accept {
		verb = "accepted"
	}
	replyID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	answer := accept
	a := model.InvitationAnswer{
		NotificationID: n.ID,
		UserID:         caller.UserID,
		Accept:         accept,
		Message:        fmt.Sprintf("You've %s the invitation", verb),
		Reply: model.Notification{
			ID:        replyID,
			UserID:    n.SentByID,
			SentByID:  caller.UserID,
			ProjectID: n.ProjectID,
			Message:   fmt.Sprintf("%s %s has %s your invitation", u.FirstName, u.LastName, verb),
			Answer:    &answer,
		},
	}

	if accept && n.ProjectID != nil {
		_, err := s.projects.GetByID(ctx, *n.ProjectID)
		switch {
		case err == nil:
			member, err := s.newMember(ctx, u, *n.ProjectID, n.SentByID)
			if err != nil {
				return err
			}
			a.Member = member
		case errors.Is(err, errs.ErrNotFound):
			// project gone: record the answer only
			a.Reply.ProjectID = nil
		default:
			return err
		}
	}
	return s.notifs.Answer(ctx, a)
}

// newMember builds the USER membership an accepted invitation creates, or
// returns nil when the user is already a live member of the project.
func (s *InvitationServiceImpl) newMember(ctx context.Context, u *model.User, projectID, invitedBy uuid.UUID) (*model.Client, error) {
	_, err := s.clients.GetByUser(ctx, u.ID, projectID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	cid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &model.Client{
		ID:          cid,
		UserID:      u.ID,
		ProjectID:   projectID,
		Role:        model.RoleUser,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		CreatedByID: invitedBy,
	}, nil
}

func (s *InvitationServiceImpl) hasPendingInvite(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	inbox, err := s.notifs.ListForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, n := range inbox {
		if n.Pending() && n.ProjectID != nil && *n.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

// List returns the caller's notifications, newest first.
func (s *InvitationServiceImpl) List(ctx context.Context, caller model.Caller) ([]model.Notification, error) {
	return s.notifs.ListForUser(ctx, caller.UserID)
}

// Remove deletes one of the caller's notifications.
func (s *InvitationServiceImpl) Remove(ctx context.Context, caller model.Caller, notificationID uuid.UUID) error {
	return s.notifs.Delete(ctx, notificationID, caller.UserID)
}
