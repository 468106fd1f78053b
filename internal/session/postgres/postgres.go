package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hifdhlab/tasmi/internal/session"
)

// Compile-time assertion that Store satisfies session.Store.
var _ session.Store = (*Store)(nil)

// Store is the PostgreSQL-backed session store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, verifies the connection, and ensures
// the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres sessions: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres sessions: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres sessions: ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Ping verifies the database connection, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements [session.Store.Save] as an upsert keyed by session id.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	snap := sess.Snapshot()

	startingPos, err := json.Marshal(snap.StartingPosition)
	if err != nil {
		return fmt.Errorf("postgres sessions: marshal starting position: %w", err)
	}
	progress, err := json.Marshal(snap.Progress)
	if err != nil {
		return fmt.Errorf("postgres sessions: marshal progress: %w", err)
	}
	errLog, err := json.Marshal(snap.Errors)
	if err != nil {
		return fmt.Errorf("postgres sessions: marshal errors: %w", err)
	}
	counts, err := json.Marshal(snap.ErrorCounts)
	if err != nil {
		return fmt.Errorf("postgres sessions: marshal error counts: %w", err)
	}

	var endedAt *time.Time
	if !snap.EndedAt.IsZero() {
		endedAt = &snap.EndedAt
	}

	const q = `
		INSERT INTO recitation_sessions
		    (id, user_id, mode, error_threshold, state, active, complete,
		     starting_position, progress, errors, error_counts,
		     chunks_processed, recitation_seconds, words_recited, correct_words,
		     started_at, ended_at, average_accuracy, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now())
		ON CONFLICT (id) DO UPDATE SET
		    state              = EXCLUDED.state,
		    active             = EXCLUDED.active,
		    complete           = EXCLUDED.complete,
		    progress           = EXCLUDED.progress,
		    errors             = EXCLUDED.errors,
		    error_counts       = EXCLUDED.error_counts,
		    chunks_processed   = EXCLUDED.chunks_processed,
		    recitation_seconds = EXCLUDED.recitation_seconds,
		    words_recited      = EXCLUDED.words_recited,
		    correct_words      = EXCLUDED.correct_words,
		    ended_at           = EXCLUDED.ended_at,
		    average_accuracy   = EXCLUDED.average_accuracy,
		    updated_at         = now()`

	_, err = s.pool.Exec(ctx, q,
		snap.ID,
		snap.UserID,
		snap.Mode,
		snap.ErrorThreshold,
		string(snap.State),
		snap.Active,
		snap.Complete,
		startingPos,
		progress,
		errLog,
		counts,
		snap.ChunksProcessed,
		snap.RecitationSeconds,
		snap.WordsRecited,
		snap.CorrectWords,
		snap.StartedAt,
		endedAt,
		snap.AverageAccuracy,
	)
	if err != nil {
		return fmt.Errorf("postgres sessions: save %s: %w", snap.ID, err)
	}
	return nil
}

const selectColumns = `
	SELECT id, user_id, mode, error_threshold, state, active, complete,
	       starting_position, progress, errors, error_counts,
	       chunks_processed, recitation_seconds, words_recited, correct_words,
	       started_at, ended_at, average_accuracy
	FROM   recitation_sessions`

// Load implements [session.Store.Load].
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres sessions: load %s: %w", id, err)
	}
	sess, err := pgx.CollectOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres sessions: load %s: %w", id, err)
	}
	return sess, nil
}

// Delete implements [session.Store.Delete].
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recitation_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres sessions: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// List implements [session.Store.List].
func (s *Store) List(ctx context.Context, userID string) ([]*session.Session, error) {
	q := selectColumns + ` ORDER BY started_at DESC`
	args := []any{}
	if userID != "" {
		q = selectColumns + ` WHERE user_id = $1 ORDER BY started_at DESC`
		args = append(args, userID)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres sessions: list: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("postgres sessions: scan rows: %w", err)
	}
	return sessions, nil
}

// scanSession reconstructs a session snapshot from one row.
func scanSession(row pgx.CollectableRow) (*session.Session, error) {
	var (
		sess        session.Session
		state       string
		startingPos []byte
		progress    []byte
		errLog      []byte
		counts      []byte
		endedAt     *time.Time
	)
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.Mode,
		&sess.ErrorThreshold,
		&state,
		&sess.Active,
		&sess.Complete,
		&startingPos,
		&progress,
		&errLog,
		&counts,
		&sess.ChunksProcessed,
		&sess.RecitationSeconds,
		&sess.WordsRecited,
		&sess.CorrectWords,
		&sess.StartedAt,
		&endedAt,
		&sess.AverageAccuracy,
	); err != nil {
		return nil, err
	}

	sess.State = session.State(state)
	if endedAt != nil {
		sess.EndedAt = *endedAt
	}
	if err := json.Unmarshal(startingPos, &sess.StartingPosition); err != nil {
		return nil, fmt.Errorf("starting position: %w", err)
	}
	if err := json.Unmarshal(progress, &sess.Progress); err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}
	if err := json.Unmarshal(errLog, &sess.Errors); err != nil {
		return nil, fmt.Errorf("errors: %w", err)
	}
	if err := json.Unmarshal(counts, &sess.ErrorCounts); err != nil {
		return nil, fmt.Errorf("error counts: %w", err)
	}
	return &sess, nil
}
