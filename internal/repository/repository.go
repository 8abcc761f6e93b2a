// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user; a taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// ClientRepository provides access to live project memberships.
type ClientRepository interface {
	// GetByUser returns the live membership of userID in projectID.
	GetByUser(ctx context.Context, userID, projectID uuid.UUID) (*model.Client, error)
	// GetByID returns a live client of projectID.
	GetByID(ctx context.Context, projectID, clientID uuid.UUID) (*model.Client, error)
	// UpdateRole changes the role of a live client.
	UpdateRole(ctx context.Context, projectID, clientID uuid.UUID, role model.Role) error
	// SoftDelete marks a client removed; its logs are retained.
	SoftDelete(ctx context.Context, projectID, clientID uuid.UUID) error
}

// ProjectRepository provides access to projects.
type ProjectRepository interface {
	// CreateWithAdmin inserts a project and its creator's ADMIN client atomically.
	CreateWithAdmin(ctx context.Context, p *model.Project, admin *model.Client) error
	// GetByID loads a project.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// Delete removes a project created by createdByID.
	Delete(ctx context.Context, id, createdByID uuid.UUID) error
	// ListForUser returns projects where userID holds a live membership.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Project, error)
}

// LogRepository persists logs with optimistic concurrency.
type LogRepository interface {
	// Create inserts a log into an empty slot; an occupied slot yields errs.ErrVersionConflict.
	Create(ctx context.Context, w model.LogWrite) (model.LogVersion, error)
	// Update rewrites a log if its stored version equals w.Version, incrementing it.
	Update(ctx context.Context, w model.LogWrite) (model.LogVersion, error)
	// ListForClient returns a client's logs with date in [from, to], oldest first.
	ListForClient(ctx context.Context, projectID, clientID uuid.UUID, from, to time.Time, limit int) ([]model.Log, error)
	// TotalDuration sums non-absent durations of a client in a project.
	TotalDuration(ctx context.Context, projectID, clientID uuid.UUID) (int64, error)
}

// StatsRepository serves project statistics reads.
type StatsRepository interface {
	// MembersWithLogs returns matching live clients with logs dated in [f.Start, f.End].
	MembersWithLogs(ctx context.Context, f model.StatsFilter) ([]model.MemberLogs, error)
}

// NotificationRepository stores notifications and applies invitation answers.
type NotificationRepository interface {
	// Create inserts a notification.
	Create(ctx context.Context, n *model.Notification) error
	// Get loads a notification addressed to userID.
	Get(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error)
	// ListForUser returns notifications addressed to userID, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	// Answer resolves a pending invitation, sends reply and, when member is
	// non-nil, creates the membership, all in one transaction.
	Answer(ctx context.Context, a model.InvitationAnswer) error
	// Delete removes a notification addressed to userID.
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
