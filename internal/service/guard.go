package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const tokenLeeway = 30 * time.Second

// Guard authenticates callers and checks their project roles.
// Roles are read from the store on every call and never cached.
type Guard struct {
	clients repository.ClientRepository
	signKey []byte
}

// NewGuard constructs a Guard verifying tokens signed with signKey.
func NewGuard(clients repository.ClientRepository, signKey []byte) *Guard {
	return &Guard{clients: clients, signKey: signKey}
}

// RequireAuthenticated verifies an HS256 access token and returns its subject.
func (g *Guard) RequireAuthenticated(token string) (model.Caller, error) {
	if token == "" {
		return model.Caller{}, errs.ErrUnauthenticated
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return g.signKey, nil
	}, jwt.WithLeeway(tokenLeeway), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.Caller{}, errs.ErrUnauthenticated
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return model.Caller{}, errs.ErrUnauthenticated
	}
	return model.Caller{UserID: id}, nil
}

// AuthorizeProjectRole returns the caller's live membership when its role is
// at least minimum. A missing membership and an insufficient role are both
// ErrForbidden; store failures are returned as-is.
func (g *Guard) AuthorizeProjectRole(ctx context.Context, userID, projectID uuid.UUID, minimum model.Role) (*model.Client, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthenticated
	}
	c, err := g.clients.GetByUser(ctx, userID, projectID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("resolve membership: %w", err)
	}
	if !c.Role.AtLeast(minimum) {
		return nil, errs.ErrForbidden
	}
	return c, nil
}

// RequireProjectAdmin admits ADMIN members only.
func (g *Guard) RequireProjectAdmin(ctx context.Context, userID, projectID uuid.UUID) (*model.Client, error) {
	return g.AuthorizeProjectRole(ctx, userID, projectID, model.RoleAdmin)
}

// RequireProjectAdminOrManager admits ADMIN and MANAGER members.
func (g *Guard) RequireProjectAdminOrManager(ctx context.Context, userID, projectID uuid.UUID) (*model.Client, error) {
	return g.AuthorizeProjectRole(ctx, userID, projectID, model.RoleManager)
}

// ResolveMember admits any live member.
func (g *Guard) ResolveMember(ctx context.Context, userID, projectID uuid.UUID) (*model.Client, error) {
	return g.AuthorizeProjectRole(ctx, userID, projectID, model.RoleUser)
}
