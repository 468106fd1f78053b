package session

import "sync"

// Registry holds the live sessions currently accepting chunks. Unlike
// [Store], which deals in snapshots, the Registry hands out the one live
// *Session per id so that all chunk processing for a session serializes on
// the same lock. Construct one per process and inject it; there is no
// package-level instance.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Session)}
}

// Add registers a live session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[s.ID] = s
}

// Get returns the live session with the given id.
// Returns [ErrNotFound] when the session is not registered.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.active[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Adopt registers s unless a live session with the same id is already
// registered, and returns whichever instance is registered after the call.
// Concurrent adopters of the same persisted session converge on one
// instance.
func (r *Registry) Adopt(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.active[s.ID]; ok {
		return cur
	}
	r.active[s.ID] = s
	return s
}

// Remove drops the session with the given id. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

// Len returns the number of registered live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
