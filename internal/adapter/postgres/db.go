package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS meeting_events (
	id               BIGSERIAL PRIMARY KEY,
	video_uri        TEXT NOT NULL UNIQUE,
	body_name        TEXT NOT NULL,
	session_datetime TIMESTAMPTZ NOT NULL,
	session_index    INTEGER NOT NULL DEFAULT 0,
	run_id           TEXT NOT NULL,
	scraped_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS meeting_events_session_datetime_idx
	ON meeting_events (session_datetime);

CREATE TABLE IF NOT EXISTS meeting_failures (
	id                     BIGSERIAL PRIMARY KEY,
	player_uri             TEXT NOT NULL UNIQUE,
	title                  TEXT NOT NULL,
	meeting_datetime       TIMESTAMPTZ NOT NULL,
	failure_reason         TEXT NOT NULL,
	last_attempt_timestamp TIMESTAMPTZ NOT NULL,
	attempt_count          INTEGER NOT NULL DEFAULT 1
);
`

// Connect opens a pool and verifies the server is reachable.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the meeting tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
