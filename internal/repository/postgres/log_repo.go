package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// LogRepo implements LogRepository using PostgreSQL.
type LogRepo struct{ db *DB }

// NewLogRepo constructs a log repository.
func NewLogRepo(db *DB) *LogRepo { return &LogRepo{db: db} }

const qLogCols = `id, client_id, project_id, date, start_time, end_time, duration, title, content,
is_billable, is_absent, version, modified_by_id, created_at, updated_at`

const (
	qLockSlot = `SELECT id FROM logs WHERE client_id=$1 AND project_id=$2 AND date=$3 FOR UPDATE`

	qInsertLog = `
INSERT INTO logs (id, client_id, project_id, date, start_time, end_time, duration, title, content,
  is_billable, is_absent, version, modified_by_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	qUpdateLog = `
UPDATE logs
SET date=$5, start_time=$6, end_time=$7, duration=$8, title=$9, content=$10,
  is_billable=$11, is_absent=$12, modified_by_id=$13, version=version+1, updated_at=now()
WHERE id=$1 AND version=$2 AND client_id=$3 AND project_id=$4
RETURNING version`
)

// Create inserts a log into an empty (client, project, date) slot.
// The slot check and the insert share one transaction; a concurrent insert
// that wins the race surfaces as a unique violation and is reported the same
// way as an occupied slot.
func (r *LogRepo) Create(ctx context.Context, w model.LogWrite) (model.LogVersion, error) {
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var existing uuid.UUID
		scanErr := tx.QueryRow(ctx, qLockSlot, w.ClientID, w.ProjectID, w.Date).Scan(&existing)
		switch {
		case scanErr == nil:
			return errs.ErrVersionConflict
		case !errors.Is(scanErr, pgx.ErrNoRows):
			return scanErr
		}

		_, err := tx.Exec(ctx, qInsertLog,
			w.ID, w.ClientID, w.ProjectID, w.Date, w.StartTime, w.EndTime, w.Duration,
			w.Title, w.Content, w.IsBillable, w.IsAbsent, w.Version, w.ModifiedByID)
		if isUniqueViolation(err) {
			return errs.ErrVersionConflict
		}
		return err
	})
	if err != nil {
		return model.LogVersion{}, err
	}
	return model.LogVersion{ID: w.ID, Version: w.Version}, nil
}

// Update compares-and-swaps a log on (id, version) and bumps its version.
// Zero matched rows is a conflict whether the id or the version was wrong.
func (r *LogRepo) Update(ctx context.Context, w model.LogWrite) (model.LogVersion, error) {
	var newVer int64
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, qUpdateLog,
			w.ID, w.Version, w.ClientID, w.ProjectID,
			w.Date, w.StartTime, w.EndTime, w.Duration, w.Title, w.Content,
			w.IsBillable, w.IsAbsent, w.ModifiedByID).Scan(&newVer)
		switch {
		case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
			return errs.ErrVersionConflict
		default:
			return err
		}
	})
	if err != nil {
		return model.LogVersion{}, err
	}
	return model.LogVersion{ID: w.ID, Version: newVer}, nil
}

// ListForClient returns a client's logs dated within [from, to].
func (r *LogRepo) ListForClient(
	ctx context.Context, projectID, clientID uuid.UUID, from, to time.Time, limit int,
) ([]model.Log, error) {
	const q = `SELECT ` + qLogCols + `
FROM logs
WHERE project_id=$1 AND client_id=$2 AND date BETWEEN $3 AND $4
ORDER BY date ASC
LIMIT $5`
	rows, err := r.db.Pool.Query(ctx, q, projectID, clientID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

// TotalDuration sums durations of the client's non-absent logs in a project.
func (r *LogRepo) TotalDuration(ctx context.Context, projectID, clientID uuid.UUID) (int64, error) {
	const q = `SELECT COALESCE(SUM(duration),0) FROM logs WHERE project_id=$1 AND client_id=$2 AND is_absent=false`
	var v int64
	if err := r.db.Pool.QueryRow(ctx, q, projectID, clientID).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func collectLogs(rows pgx.Rows) ([]model.Log, error) {
	var out []model.Log
	for rows.Next() {
		var l model.Log
		if err := rows.Scan(
			&l.ID, &l.ClientID, &l.ProjectID, &l.Date, &l.StartTime, &l.EndTime, &l.Duration,
			&l.Title, &l.Content, &l.IsBillable, &l.IsAbsent, &l.Version, &l.ModifiedByID,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
