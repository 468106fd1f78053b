package session

import (
	"context"
	"slices"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. It stores
// snapshots by value, so a saved session keeps mutating independently of
// what the store returns. Suitable for tests and single-node deployments.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*Session)}
}

// Save implements [Store.Save].
func (m *MemStore) Save(ctx context.Context, s *Session) error {
	snap := s.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[snap.ID] = snap
	return nil
}

// Load implements [Store.Load].
func (m *MemStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Snapshot(), nil
}

// Delete implements [Store.Delete].
func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List implements [Store.List].
func (m *MemStore) List(ctx context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if userID != "" && s.UserID != userID {
			continue
		}
		result = append(result, s.Snapshot())
	}
	slices.SortFunc(result, func(a, b *Session) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return result, nil
}
