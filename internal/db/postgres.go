// Package db provides database connection helpers.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the tables the scan pipeline writes to if they do not
// exist yet. The intake/dashboard collaborator owns row creation for users
// and searches; the pipeline owns listings.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS searches (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			query        TEXT NOT NULL,
			postal_code  TEXT NOT NULL,
			min_price    INTEGER,
			max_price    INTEGER,
			radius_miles INTEGER,
			active       BOOLEAN NOT NULL DEFAULT true,
			preferences  TEXT NOT NULL DEFAULT '',
			last_checked TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS listings (
			id          TEXT PRIMARY KEY,
			search_id   TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL,
			title       TEXT NOT NULL,
			price       INTEGER,
			url         TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image_url   TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			posted_at   TIMESTAMPTZ,
			score       INTEGER NOT NULL,
			good_deal   BOOLEAN NOT NULL,
			reasoning   TEXT NOT NULL DEFAULT '',
			product     TEXT NOT NULL DEFAULT '',
			retail_low  INTEGER,
			retail_high INTEGER,
			condition   TEXT NOT NULL DEFAULT 'unknown',
			alert_sent  BOOLEAN NOT NULL DEFAULT false,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (search_id, external_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
