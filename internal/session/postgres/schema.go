// Package postgres provides the PostgreSQL-backed implementation of
// [session.Store]. One row per session; the progress cursor and the error
// log are stored as JSONB so the row mirrors the in-memory snapshot without
// a table per collection.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, sess.Snapshot())
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS recitation_sessions (
    id                 TEXT              PRIMARY KEY,
    user_id            TEXT              NOT NULL,
    mode               TEXT              NOT NULL DEFAULT '',
    error_threshold    DOUBLE PRECISION  NOT NULL DEFAULT 0,
    state              TEXT              NOT NULL,
    active             BOOLEAN           NOT NULL,
    complete           BOOLEAN           NOT NULL DEFAULT FALSE,
    starting_position  JSONB             NOT NULL DEFAULT '{}',
    progress           JSONB             NOT NULL DEFAULT '{}',
    errors             JSONB             NOT NULL DEFAULT '[]',
    error_counts       JSONB             NOT NULL DEFAULT '{}',
    chunks_processed   INTEGER           NOT NULL DEFAULT 0,
    recitation_seconds DOUBLE PRECISION  NOT NULL DEFAULT 0,
    words_recited      INTEGER           NOT NULL DEFAULT 0,
    correct_words      INTEGER           NOT NULL DEFAULT 0,
    started_at         TIMESTAMPTZ       NOT NULL,
    ended_at           TIMESTAMPTZ,
    average_accuracy   DOUBLE PRECISION  NOT NULL DEFAULT 0,
    updated_at         TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recitation_sessions_user_id
    ON recitation_sessions (user_id);

CREATE INDEX IF NOT EXISTS idx_recitation_sessions_started_at
    ON recitation_sessions (started_at);
`

// migrate ensures the sessions table and its indexes exist.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessions); err != nil {
		return fmt.Errorf("postgres sessions: migrate: %w", err)
	}
	return nil
}
