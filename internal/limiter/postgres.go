package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by PG.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps limiter state in the auth_limiter table.
type PG struct {
	q      Querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, p Policy) *PG {
	return &PG{q: q, policy: p, now: time.Now}
}

const (
	qLimiterState = `SELECT blocked_until FROM auth_limiter WHERE email=$1 AND ip_hash=$2`

	qLimiterReset = `
INSERT INTO auth_limiter (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',now())
ON CONFLICT (email, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`

	// A failure outside the window restarts the count at one.
	qLimiterFail = `
INSERT INTO auth_limiter (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',now())
ON CONFLICT (email, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - auth_limiter.updated_at > $3::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`

	qLimiterBlock = `UPDATE auth_limiter SET blocked_until=$3 WHERE email=$1 AND ip_hash=$2`
)

// Allow reports the remaining lockout for k, zero when unlocked.
func (l *PG) Allow(ctx context.Context, k Key) (time.Duration, error) {
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, qLimiterState, k.Email, k.IPHash).Scan(&blockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if left := blockedUntil.Sub(l.now()); left > 0 {
		return left, nil
	}
	return 0, nil
}

// Success resets counters for k.
func (l *PG) Success(ctx context.Context, k Key) error {
	_, err := l.q.Exec(ctx, qLimiterReset, k.Email, k.IPHash)
	return err
}

// Failure counts a failed attempt and locks k once the policy threshold is hit.
func (l *PG) Failure(ctx context.Context, k Key) (time.Duration, error) {
	var fails int
	if err := l.q.QueryRow(ctx, qLimiterFail, k.Email, k.IPHash, l.policy.Window).Scan(&fails); err != nil {
		return 0, err
	}
	if fails < l.policy.MaxFails {
		return 0, nil
	}
	if _, err := l.q.Exec(ctx, qLimiterBlock, k.Email, k.IPHash, l.now().Add(l.policy.BlockFor)); err != nil {
		return 0, err
	}
	return l.policy.BlockFor, nil
}
