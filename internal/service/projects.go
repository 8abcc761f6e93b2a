package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/gofrs/uuid/v5"
)

const minProjectNameLen = 4

// ProjectService defines project lifecycle and membership administration.
type ProjectService interface {
	CreateProject(ctx context.Context, caller model.Caller, name, description string) (*model.Project, error)
	DeleteProject(ctx context.Context, caller model.Caller, projectID uuid.UUID) error
	ListProjects(ctx context.Context, caller model.Caller) ([]model.Project, error)
	ChangeRole(ctx context.Context, caller model.Caller, projectID, clientID uuid.UUID, role model.Role) error
	RemoveMember(ctx context.Context, caller model.Caller, projectID, clientID uuid.UUID) error
}

type ProjectServiceImpl struct {
	projects repository.ProjectRepository
	clients  repository.ClientRepository
	users    repository.UserRepository
	guard    *Guard
}

// NewProjectService constructs ProjectService.
func NewProjectService(
	projects repository.ProjectRepository, clients repository.ClientRepository,
	users repository.UserRepository, guard *Guard,
) *ProjectServiceImpl {
	return &ProjectServiceImpl{projects: projects, clients: clients, users: users, guard: guard}
}

// CreateProject stores the project together with the creator's ADMIN client.
func (s *ProjectServiceImpl) CreateProject(ctx context.Context, caller model.Caller, name, description string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minProjectNameLen {
		v := errs.NewValidation()
		v.Add("name", fmt.Sprintf("project name must be at least %d characters", minProjectNameLen))
		return nil, v
	}
	u, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthenticated
		}
		return nil, err
	}

	pid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	cid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	p := &model.Project{
		ID:          pid,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedByID: u.ID,
		TeamCount:   1,
	}
	admin := &model.Client{
		ID:          cid,
		UserID:      u.ID,
		ProjectID:   pid,
		Role:        model.RoleAdmin,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		CreatedByID: u.ID,
	}
	if err := s.projects.CreateWithAdmin(ctx, p, admin); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes a project. Only its creator may do so; a missing
// project is reported the same way as someone else's.
func (s *ProjectServiceImpl) DeleteProject(ctx context.Context, caller model.Caller, projectID uuid.UUID) error {
	err := s.projects.Delete(ctx, projectID, caller.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrForbidden
	}
	return err
}

// ListProjects returns the caller's projects.
func (s *ProjectServiceImpl) ListProjects(ctx context.Context, caller model.Caller) ([]model.Project, error) {
	return s.projects.ListForUser(ctx, caller.UserID)
}

// ChangeRole sets a member's role. Admins cannot change their own role.
func (s *ProjectServiceImpl) ChangeRole(ctx context.Context, caller model.Caller, projectID, clientID uuid.UUID, role model.Role) error {
	admin, err := s.guard.RequireProjectAdmin(ctx, caller.UserID, projectID)
	if err != nil {
		return err
	}
	v := errs.NewValidation()
	if !role.Valid() {
		v.Add("role", "unknown role")
	}
	if admin.ID == clientID {
		v.Add("clientId", "cannot change your own role")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	return s.clients.UpdateRole(ctx, projectID, clientID, role)
}

// RemoveMember soft-deletes a client; its logs stay in the project.
func (s *ProjectServiceImpl) RemoveMember(ctx context.Context, caller model.Caller, projectID, clientID uuid.UUID) error {
	admin, err := s.guard.RequireProjectAdmin(ctx, caller.UserID, projectID)
	if err != nil {
		return err
	}
	if admin.ID == clientID {
		v := errs.NewValidation()
		v.Add("clientId", "cannot remove yourself")
		return v
	}
	return s.clients.SoftDelete(ctx, projectID, clientID)
}
