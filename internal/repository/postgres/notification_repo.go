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

// NotificationRepo implements NotificationRepository using PostgreSQL.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo constructs a notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

const (
	qNotifCols   = `id, user_id, sent_by_id, project_id, message, answer, checked_at, created_at`
	qInsertNotif = `
INSERT INTO notifications (id, user_id, sent_by_id, project_id, message, answer)
VALUES ($1,$2,$3,$4,$5,$6)`
	qAnswerNotif = `
UPDATE notifications SET answer=$3, checked_at=now(), message=$4
WHERE id=$1 AND user_id=$2 AND answer IS NULL`
)

// Create inserts a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return insertNotification(ctx, r.db.Pool, n)
}

// Get loads a notification addressed to userID.
func (r *NotificationRepo) Get(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error) {
	const q = `SELECT ` + qNotifCols + ` FROM notifications WHERE id=$1 AND user_id=$2`
	n, err := scanNotification(r.db.Pool.QueryRow(ctx, q, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return n, err
}

// ListForUser returns the inbox of userID, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	const q = `SELECT ` + qNotifCols + ` FROM notifications WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Answer resolves a pending invitation. The pending check is part of the
// UPDATE, so two concurrent answers cannot both apply.
func (r *NotificationRepo) Answer(ctx context.Context, a model.InvitationAnswer) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, qAnswerNotif, a.NotificationID, a.UserID, a.Accept, a.Message)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrVersionConflict
		}
		if err := insertNotification(ctx, tx, &a.Reply); err != nil {
			return err
		}
		if a.Member != nil {
			return insertClient(ctx, tx, a.Member)
		}
		return nil
	})
}

// Delete removes a notification addressed to userID.
func (r *NotificationRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	const q = `DELETE FROM notifications WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func insertNotification(ctx context.Context, q execer, n *model.Notification) error {
	var project uuid.NullUUID
	if n.ProjectID != nil {
		project = uuid.NullUUID{UUID: *n.ProjectID, Valid: true}
	}
	_, err := q.Exec(ctx, qInsertNotif, n.ID, n.UserID, n.SentByID, project, n.Message, n.Answer)
	return err
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n       model.Notification
		project uuid.NullUUID
		checked *time.Time
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.SentByID, &project, &n.Message, &n.Answer, &checked, &n.CreatedAt); err != nil {
		return nil, err
	}
	if project.Valid {
		id := project.UUID
		n.ProjectID = &id
	}
	n.CheckedAt = checked
	return &n, nil
}
