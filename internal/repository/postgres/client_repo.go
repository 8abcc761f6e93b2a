package postgres

import (
	"context"
	"errors"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ClientRepo implements ClientRepository using PostgreSQL.
type ClientRepo struct{ db *DB }

// NewClientRepo constructs a client repository.
func NewClientRepo(db *DB) *ClientRepo { return &ClientRepo{db: db} }

const qClientCols = `id, user_id, project_id, role, first_name, last_name, email, created_by_id, created_at`

const qInsertClient = `
INSERT INTO clients (id, user_id, project_id, role, first_name, last_name, email, created_by_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

// GetByUser returns the caller-facing membership of userID in projectID.
func (r *ClientRepo) GetByUser(ctx context.Context, userID, projectID uuid.UUID) (*model.Client, error) {
	const q = `SELECT ` + qClientCols + ` FROM clients WHERE user_id=$1 AND project_id=$2 AND deleted_at IS NULL`
	return scanClient(r.db.Pool.QueryRow(ctx, q, userID, projectID))
}

// GetByID returns a live client of a project.
func (r *ClientRepo) GetByID(ctx context.Context, projectID, clientID uuid.UUID) (*model.Client, error) {
	const q = `SELECT ` + qClientCols + ` FROM clients WHERE id=$1 AND project_id=$2 AND deleted_at IS NULL`
	return scanClient(r.db.Pool.QueryRow(ctx, q, clientID, projectID))
}

// UpdateRole sets the role of a live client.
func (r *ClientRepo) UpdateRole(ctx context.Context, projectID, clientID uuid.UUID, role model.Role) error {
	const q = `UPDATE clients SET role=$3 WHERE id=$1 AND project_id=$2 AND deleted_at IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, clientID, projectID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SoftDelete marks a client removed. Logs keep pointing at the row.
func (r *ClientRepo) SoftDelete(ctx context.Context, projectID, clientID uuid.UUID) error {
	const q = `UPDATE clients SET deleted_at=now() WHERE id=$1 AND project_id=$2 AND deleted_at IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, clientID, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func insertClient(ctx context.Context, q execer, c *model.Client) error {
	_, err := q.Exec(ctx, qInsertClient,
		c.ID, c.UserID, c.ProjectID, string(c.Role), c.FirstName, c.LastName, c.Email, c.CreatedByID)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

func scanClient(row pgx.Row) (*model.Client, error) {
	var (
		c    model.Client
		role string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.ProjectID, &role, &c.FirstName, &c.LastName, &c.Email, &c.CreatedByID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	c.Role = model.Role(role)
	return &c, nil
}
