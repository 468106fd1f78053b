package session

import "context"

// Store persists session snapshots. The orchestrator saves a snapshot every
// few chunks and at stop; Load serves statistics queries for sessions that
// are no longer active and recovery after a restart.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Save upserts the given snapshot.
	Save(ctx context.Context, s *Session) error

	// Load returns the last saved snapshot for id.
	// Returns [ErrNotFound] when no session with that id was ever saved.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete removes the session with the given id.
	// Returns [ErrNotFound] when no session with that id exists.
	Delete(ctx context.Context, id string) error

	// List returns the saved sessions for userID, most recently started
	// first. An empty userID lists all sessions.
	List(ctx context.Context, userID string) ([]*Session, error)
}
