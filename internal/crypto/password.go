// Package crypto derives and checks account password hashes.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params tunes the Argon2id derivation. Start from DefaultParams.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   int
}

// DefaultParams is what the server hashes new passwords with.
var DefaultParams = Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func (p Params) validate() error {
	switch {
	case p.Time == 0:
		return errors.New("argon2: time must be positive")
	case p.Threads == 0:
		return errors.New("argon2: threads must be positive")
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("argon2: memory must be at least %d KiB", 8*uint32(p.Threads))
	case p.KeyLen < 16:
		return errors.New("argon2: key length must be at least 16 bytes")
	case p.SaltLen < 8:
		return errors.New("argon2: salt length must be at least 8 bytes")
	}
	return nil
}

// Passwords hashes user passwords under a fresh per-user salt.
type Passwords struct {
	p Params
}

// NewPasswords validates p and returns a hasher using it.
func NewPasswords(p Params) (*Passwords, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Passwords{p: p}, nil
}

// Hash draws a new salt and returns the key of password under it.
func (pw *Passwords) Hash(password string) (hash, salt []byte, err error) {
	salt = make([]byte, pw.p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("read salt: %w", err)
	}
	return pw.derive(password, salt, pw.p.KeyLen), salt, nil
}

// Matches reports whether password derives hash under salt. The key length
// is taken from the stored hash. A user row without salt or hash never
// matches.
func (pw *Passwords) Matches(password string, salt, hash []byte) bool {
	if len(salt) == 0 || len(hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(pw.derive(password, salt, uint32(len(hash))), hash) == 1
}

func (pw *Passwords) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, pw.p.Time, pw.p.MemoryKiB, pw.p.Threads, keyLen)
}
