package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var logCols = []string{
	"id", "client_id", "project_id", "date", "start_time", "end_time", "duration", "title", "content",
	"is_billable", "is_absent", "version", "modified_by_id", "created_at", "updated_at",
}

func sampleWrite(version int64) model.LogWrite {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	return model.LogWrite{
		ID: uuid.Must(uuid.NewV4()),
		LogInput: model.LogInput{
			ClientID:   uuid.Must(uuid.NewV4()),
			ProjectID:  uuid.Must(uuid.NewV4()),
			Title:      "standup",
			StartTime:  start,
			EndTime:    end,
			IsBillable: true,
			Version:    version,
		},
		Date:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Duration:     8 * 3_600_000,
		ModifiedByID: uuid.Must(uuid.NewV4()),
	}
}

func insertArgs(w model.LogWrite) []any {
	return []any{
		w.ID, w.ClientID, w.ProjectID, w.Date, w.StartTime, w.EndTime, w.Duration,
		w.Title, w.Content, w.IsBillable, w.IsAbsent, w.Version, w.ModifiedByID,
	}
}

func updateArgs(w model.LogWrite) []any {
	return []any{
		w.ID, w.Version, w.ClientID, w.ProjectID,
		w.Date, w.StartTime, w.EndTime, w.Duration, w.Title, w.Content,
		w.IsBillable, w.IsAbsent, w.ModifiedByID,
	}
}

func TestLogRepo_Create_EmptySlot_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(1)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qLockSlot)).
		WithArgs(w.ClientID, w.ProjectID, w.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(qInsertLog)).
		WithArgs(insertArgs(w)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	v, err := r.Create(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, w.ID, v.ID)
	require.Equal(t, int64(1), v.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepo_Create_OccupiedSlot_Conflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(1)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qLockSlot)).
		WithArgs(w.ClientID, w.ProjectID, w.Date).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.Must(uuid.NewV4())))
	mock.ExpectRollback()

	_, err := r.Create(context.Background(), w)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepo_Create_RacingInsert_Conflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(1)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qLockSlot)).
		WithArgs(w.ClientID, w.ProjectID, w.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(qInsertLog)).
		WithArgs(insertArgs(w)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := r.Create(context.Background(), w)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestLogRepo_Create_StoreErrors(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(1)

	mock.ExpectBegin().WillReturnError(errors.New("begin-fail"))
	_, err := r.Create(context.Background(), w)
	require.Error(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qLockSlot)).WithArgs(w.ClientID, w.ProjectID, w.Date).
		WillReturnError(errors.New("weird-scan"))
	mock.ExpectRollback()
	_, err = r.Create(context.Background(), w)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrVersionConflict)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qLockSlot)).WithArgs(w.ClientID, w.ProjectID, w.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(qInsertLog)).WithArgs(insertArgs(w)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit-fail"))
	_, err = r.Create(context.Background(), w)
	require.Error(t, err)
}

func TestLogRepo_Update_BumpsVersion(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(1)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qUpdateLog)).
		WithArgs(updateArgs(w)...).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectCommit()

	v, err := r.Update(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.Version)
	require.Equal(t, w.ID, v.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepo_Update_StaleVersion_Conflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(1)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qUpdateLog)).
		WithArgs(updateArgs(w)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.Update(context.Background(), w)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepo_Update_MovedOntoOccupiedDay_Conflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	w := sampleWrite(3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qUpdateLog)).
		WithArgs(updateArgs(w)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := r.Update(context.Background(), w)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestLogRepo_ListForClient(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	ctx := context.Background()
	w := sampleWrite(2)
	from := w.Date
	to := w.Date.AddDate(0, 1, 0)
	end := w.EndTime
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM logs WHERE project_id=\$1 AND client_id=\$2 AND date BETWEEN \$3 AND \$4 ORDER BY date ASC LIMIT \$5`).
		WithArgs(w.ProjectID, w.ClientID, from, to, 31).
		WillReturnRows(pgxmock.NewRows(logCols).
			AddRow(w.ID, w.ClientID, w.ProjectID, w.Date, w.StartTime, &end, w.Duration, "standup", "",
				true, false, int64(2), w.ModifiedByID, now, now).
			AddRow(uuid.Must(uuid.NewV4()), w.ClientID, w.ProjectID, w.Date.AddDate(0, 0, 1), w.StartTime.AddDate(0, 0, 1), nil, int64(0), "", "",
				false, false, int64(1), w.ModifiedByID, now, now))

	logs, err := r.ListForClient(ctx, w.ProjectID, w.ClientID, from, to, 31)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.NotNil(t, logs[0].EndTime)
	require.True(t, logs[0].EndTime.Equal(end))
	require.Nil(t, logs[1].EndTime)
	require.Equal(t, int64(2), logs[0].Version)

	mock.ExpectQuery(`FROM logs WHERE project_id=\$1`).WithArgs(w.ProjectID, w.ClientID, from, to, 31).
		WillReturnError(errors.New("q-fail"))
	_, err = r.ListForClient(ctx, w.ProjectID, w.ClientID, from, to, 31)
	require.Error(t, err)
}

func TestLogRepo_TotalDuration(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLogRepo(db)
	p, c := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(duration\),0\) FROM logs WHERE project_id=\$1 AND client_id=\$2 AND is_absent=false`).
		WithArgs(p, c).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(5_400_000)))

	v, err := r.TotalDuration(context.Background(), p, c)
	require.NoError(t, err)
	require.Equal(t, int64(5_400_000), v)
}
