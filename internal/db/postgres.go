// Package db provides database connectivity helpers and migration support.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Pool sizing for the read-mostly query workload. Every request runs in a
// short read-only transaction, so a modest pool is enough.
const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
)

// OpenPostgres opens a *sql.DB pool for the given Postgres connection string
// and verifies the connection before returning.
func OpenPostgres(dsn string, maxOpen int) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database URL")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(maxOpen, defaultMaxIdleConns))
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}
