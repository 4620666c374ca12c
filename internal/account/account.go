// Package account verifies usernames and passwords against the users table.
//
// Stored passwords are bcrypt hashes. Rows still holding a legacy plaintext
// password are accepted once and rewritten as bcrypt on that login.
package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"filedesk/internal/files"
)

var (
	// ErrUserNotFound is returned by Store.FindByUsername for unknown users.
	ErrUserNotFound = errors.New("account: user not found")
	// ErrInvalidCredentials is returned for any username/password mismatch.
	ErrInvalidCredentials = errors.New("account: invalid username or password")
)

// DefaultCost is the bcrypt cost used for new and upgraded hashes.
const DefaultCost = 12

// User is a row of the users table. Role is resolved from UserType when the
// row is loaded.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	UserType     string
	Role         files.Role
	LastLogin    *time.Time
}

// Store is the persistence needed by the Authenticator.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// IsBcryptHash reports whether stored looks like a bcrypt hash.
func IsBcryptHash(stored string) bool {
	return len(stored) == 60 &&
		(strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$"))
}

// Authenticator checks credentials and maintains password hashes.
type Authenticator struct {
	users Store
	log   *zap.Logger
	cost  int
	now   func() time.Time
}

// NewAuthenticator returns an Authenticator backed by users.
func NewAuthenticator(users Store, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{users: users, log: log, cost: DefaultCost, now: time.Now}
}

// WithCost returns a copy using the given bcrypt cost.
func (a *Authenticator) WithCost(cost int) *Authenticator {
	c := *a
	c.cost = cost
	return &c
}

// Authenticate returns the user when password matches. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if IsBcryptHash(u.PasswordHash) {
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	} else {
		if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(password)) != 1 {
			return nil, ErrInvalidCredentials
		}
		a.upgrade(ctx, u, password)
	}

	now := a.now()
	if err := a.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		a.log.Warn("update last_login failed", zap.Int64("user_id", u.ID), zap.Error(err))
	} else {
		u.LastLogin = &now
	}
	return u, nil
}

// upgrade replaces a legacy plaintext password with its bcrypt hash. A
// failed upgrade does not fail the login.
func (a *Authenticator) upgrade(ctx context.Context, u *User, password string) {
	hash, err := HashPassword(password, a.cost)
	if err != nil {
		a.log.Warn("password upgrade hash failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	if err := a.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		a.log.Warn("password upgrade failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	u.PasswordHash = hash
	a.log.Info("upgraded legacy password to bcrypt", zap.String("username", u.Username))
}
