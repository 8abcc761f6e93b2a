// Package limiter throttles login attempts per (email, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Key identifies a throttled login source. Emails are compared
// case-insensitively; addresses are stored hashed.
type Key struct {
	Email  string
	IPHash []byte
}

// NewKey normalises email and hashes the peer address.
func NewKey(email, addr string) Key {
	h := sha256.Sum256([]byte(addr))
	return Key{Email: strings.ToLower(strings.TrimSpace(email)), IPHash: h[:]}
}

// Policy bounds failed attempts: MaxFails failures within Window lock the
// key for BlockFor.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy is five failures per quarter hour, fifteen minute lockout.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow returns zero when a login may proceed, otherwise the remaining lockout.
	Allow(ctx context.Context, k Key) (time.Duration, error)
	// Success clears the failure counter.
	Success(ctx context.Context, k Key) error
	// Failure records a failed attempt and returns the lockout it triggered, if any.
	Failure(ctx context.Context, k Key) (time.Duration, error)
}
