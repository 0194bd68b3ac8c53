package session

import (
	"sync"
	"time"

	"github.com/kailas-cloud/bioscope/internal/domain"
	domsess "github.com/kailas-cloud/bioscope/internal/domain/session"
)

// Registry holds live sessions in memory. A zero max means unlimited.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domsess.Session
	max      int
}

// NewRegistry creates an empty registry.
func NewRegistry(maxSessions int) *Registry {
	return &Registry{sessions: make(map[string]*domsess.Session), max: maxSessions}
}

// Add stores s, or fails with domain.ErrTooManySessions when full.
func (r *Registry) Add(s *domsess.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return domain.ErrTooManySessions
	}
	r.sessions[s.ID()] = s
	return nil
}

// Get returns the session or domain.ErrSessionNotFound.
func (r *Registry) Get(id string) (*domsess.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Remove deletes the session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RemoveIdle closes and drops every session idle for at least ttl and returns
// their ids. Sessions with an action in progress are skipped.
func (r *Registry) RemoveIdle(now time.Time, ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, s := range r.sessions {
		if !s.IdleSince(now, ttl) || !s.TryLock() {
			continue
		}
		if s.IdleSince(now, ttl) {
			s.Close()
			delete(r.sessions, id)
			removed = append(removed, id)
		}
		s.Unlock()
	}
	return removed
}
