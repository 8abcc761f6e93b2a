package postgres

import (
	"context"
	"errors"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ProjectRepo implements ProjectRepository using PostgreSQL.
type ProjectRepo struct{ db *DB }

// NewProjectRepo constructs a project repository.
func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

// CreateWithAdmin inserts the project and its creator's ADMIN membership.
func (r *ProjectRepo) CreateWithAdmin(ctx context.Context, p *model.Project, admin *model.Client) error {
	const ins = `INSERT INTO projects (id, name, description, created_by_id) VALUES ($1,$2,$3,$4)`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, ins, p.ID, p.Name, p.Description, p.CreatedByID); err != nil {
			return err
		}
		return insertClient(ctx, tx, admin)
	})
}

// GetByID loads a project by id.
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	const q = `SELECT id, name, description, created_by_id, created_at FROM projects WHERE id=$1`
	var p model.Project
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedByID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Delete removes a project; only a row created by createdByID matches.
func (r *ProjectRepo) Delete(ctx context.Context, id, createdByID uuid.UUID) error {
	const q = `DELETE FROM projects WHERE id=$1 AND created_by_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, createdByID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListForUser returns projects with a live membership of userID and their team size.
func (r *ProjectRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	const q = `
SELECT p.id, p.name, p.description, p.created_by_id, p.created_at,
  (SELECT count(*) FROM clients t WHERE t.project_id = p.id AND t.deleted_at IS NULL)
FROM projects p
JOIN clients c ON c.project_id = p.id
WHERE c.user_id=$1 AND c.deleted_at IS NULL
ORDER BY p.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var (
			p    model.Project
			team int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedByID, &p.CreatedAt, &team); err != nil {
			return nil, err
		}
		p.TeamCount = int(team)
		out = append(out, p)
	}
	return out, rows.Err()
}
