package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"filedesk/internal/account"
	"filedesk/internal/files"
)

// FindByUsername returns account.ErrUserNotFound for unknown usernames.
func (p *Postgres) FindByUsername(ctx context.Context, username string) (*account.User, error) {
	var (
		u         account.User
		lastLogin sql.NullTime
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, password, fullname, usertype, last_login
		 FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.UserType, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.Role = files.ParseRole(u.UserType)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// UpdatePassword replaces the stored password hash.
func (p *Postgres) UpdatePassword(ctx context.Context, id int64, hash string) error {
	if _, err := p.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE id = $1`, id, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// TouchLastLogin stamps the user's last successful login.
func (p *Postgres) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := p.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch last_login: %w", err)
	}
	return nil
}

// CreateUser inserts a user row. The password must already be hashed.
func (p *Postgres) CreateUser(ctx context.Context, u *account.User) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password, fullname, usertype)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Username, u.PasswordHash, u.FullName, u.UserType,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Username, ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.Role = files.ParseRole(u.UserType)
	return nil
}
