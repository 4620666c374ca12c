package db

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateResult reports the schema state after RunMigrations.
type MigrateResult struct {
	Version uint
	Dirty   bool
}

// RunMigrations applies every pending migration from the embedded
// migrations directory.
func RunMigrations(databaseURL string) (MigrateResult, error) {
	migrateURL, err := migrateURL(databaseURL)
	if err != nil {
		return MigrateResult{}, err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return MigrateResult{}, fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrateResult{}, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrateResult{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrateResult{Version: version, Dirty: dirty}, nil
}

// migrateURL rewrites a postgres:// URL to the pgx5:// scheme understood
// by the golang-migrate pgx driver.
func migrateURL(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
