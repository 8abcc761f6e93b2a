// Package service contains the application services: authentication, the
// authorization guard, log mutation, statistics, projects and invitations.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	pkgcrypto "github.com/and161185/worklog/internal/crypto"
	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/limiter"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	minPasswordLen = 6
	minNameLen     = 2
)

// Registration is the input of AuthService.Register.
type Registration struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// AuthService defines account registration and login.
type AuthService interface {
	// Register creates a new user with an Argon2id password hash.
	Register(ctx context.Context, r Registration) (uuid.UUID, error)
	// LoginWithIP applies rate limiting and issues an access token.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	passwords *pkgcrypto.Passwords
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository, passwords *pkgcrypto.Passwords,
	signKey []byte, accessTTL time.Duration, lim limiter.Limiter,
) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, passwords: passwords, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

func validateRegistration(r *Registration) error {
	v := errs.NewValidation()
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		v.Add("email", "invalid email address format")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLen {
		v.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if utf8.RuneCountInString(r.FirstName) < minNameLen {
		v.Add("firstName", fmt.Sprintf("must be at least %d characters", minNameLen))
	}
	if utf8.RuneCountInString(r.LastName) < minNameLen {
		v.Add("lastName", fmt.Sprintf("must be at least %d characters", minNameLen))
	}
	return v.OrNil()
}

// Register validates the form and creates the user. A taken email yields
// errs.ErrAlreadyExists.
func (s *AuthServiceImpl) Register(ctx context.Context, r Registration) (uuid.UUID, error) {
	if err := validateRegistration(&r); err != nil {
		return uuid.Nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	hash, salt, err := s.passwords.Hash(r.Password)
	if err != nil {
		return uuid.Nil, err
	}
	u := &model.User{
		ID:        uid,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		PwdHash:   hash,
		SaltAuth:  salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return uuid.Nil, err
	}
	return uid, nil
}

// LoginWithIP authenticates with rate limiting by (email, ip). Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	key := limiter.NewKey(email, ip)

	wait, err := s.lim.Allow(ctx, key)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if wait > 0 {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, key.Email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !s.passwords.Matches(password, u.SaltAuth, u.PwdHash) {
		if lock, ferr := s.lim.Failure(ctx, key); ferr == nil && lock > 0 {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		return model.Tokens{}, model.User{}, errs.ErrUnauthenticated
	}

	// best-effort reset
	_ = s.lim.Success(ctx, key)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
