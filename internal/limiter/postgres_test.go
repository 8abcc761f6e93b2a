package limiter

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, p Policy) (*PG, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	l := NewPG(mock, p)
	l.now = func() time.Time { return now }
	return l, mock, now
}

func TestNewKey(t *testing.T) {
	a := NewKey(" Ada@Example.com ", "10.0.0.1:5555")
	b := NewKey("ada@example.com", "10.0.0.1:5555")
	c := NewKey("ada@example.com", "10.0.0.2:5555")
	require.Equal(t, "ada@example.com", a.Email)
	require.Equal(t, a, b)
	require.NotEqual(t, a.IPHash, c.IPHash)
	require.Len(t, a.IPHash, 32)
}

func TestAllow(t *testing.T) {
	l, mock, now := newLimiter(t, DefaultPolicy)
	ctx := context.Background()
	k := NewKey("ada@example.com", "ip")

	mock.ExpectQuery(regexp.QuoteMeta(qLimiterState)).WithArgs(k.Email, k.IPHash).WillReturnError(pgx.ErrNoRows)
	left, err := l.Allow(ctx, k)
	require.NoError(t, err)
	require.Zero(t, left)

	mock.ExpectQuery(regexp.QuoteMeta(qLimiterState)).WithArgs(k.Email, k.IPHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(10 * time.Minute)))
	left, err = l.Allow(ctx, k)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, left)

	mock.ExpectQuery(regexp.QuoteMeta(qLimiterState)).WithArgs(k.Email, k.IPHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Minute)))
	left, err = l.Allow(ctx, k)
	require.NoError(t, err)
	require.Zero(t, left)

	mock.ExpectQuery(regexp.QuoteMeta(qLimiterState)).WithArgs(k.Email, k.IPHash).WillReturnError(errors.New("db boom"))
	_, err = l.Allow(ctx, k)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuccess(t *testing.T) {
	l, mock, _ := newLimiter(t, DefaultPolicy)
	k := NewKey("ada@example.com", "ip")

	mock.ExpectExec(`INSERT INTO auth_limiter`).WithArgs(k.Email, k.IPHash).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), k))

	mock.ExpectExec(`INSERT INTO auth_limiter`).WithArgs(k.Email, k.IPHash).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), k))
}

func TestFailure(t *testing.T) {
	p := Policy{Window: 5 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}
	l, mock, now := newLimiter(t, p)
	ctx := context.Background()
	k := NewKey("ada@example.com", "ip")

	mock.ExpectQuery(`RETURNING fail_count`).WithArgs(k.Email, k.IPHash, p.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	lock, err := l.Failure(ctx, k)
	require.NoError(t, err)
	require.Zero(t, lock)

	mock.ExpectQuery(`RETURNING fail_count`).WithArgs(k.Email, k.IPHash, p.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(qLimiterBlock)).WithArgs(k.Email, k.IPHash, now.Add(p.BlockFor)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	lock, err = l.Failure(ctx, k)
	require.NoError(t, err)
	require.Equal(t, p.BlockFor, lock)

	mock.ExpectQuery(`RETURNING fail_count`).WithArgs(k.Email, k.IPHash, p.Window).
		WillReturnError(errors.New("query error"))
	_, err = l.Failure(ctx, k)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
