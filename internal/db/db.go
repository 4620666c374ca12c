// Package db opens the PostgreSQL pool and applies the embedded schema
// migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig tunes the connection pool. Zero values select the defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenDB opens a PostgreSQL connection pool and pings it.
func OpenDB(ctx context.Context, databaseURL string, pc PoolConfig) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if pc.MaxOpenConns <= 0 {
		pc.MaxOpenConns = 10
	}
	if pc.MaxIdleConns <= 0 {
		pc.MaxIdleConns = pc.MaxOpenConns
	}
	if pc.ConnMaxLifetime <= 0 {
		pc.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pc.MaxOpenConns)
	db.SetMaxIdleConns(pc.MaxIdleConns)
	db.SetConnMaxLifetime(pc.ConnMaxLifetime)

	// Validate connectivity immediately.
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
