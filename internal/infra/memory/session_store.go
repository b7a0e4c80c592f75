package memory

import (
	"context"
	"slices"
	"sync"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// It stores copies so callers can mutate a loaded session without locking.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]app.Session),
	}
}

func (s *SessionStore) Save(_ context.Context, sess *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = cloneSession(*sess)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := cloneSession(sess)
	return &c, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func cloneSession(sess app.Session) app.Session {
	revealed := make(map[int][]int, len(sess.Revealed))
	for level, idx := range sess.Revealed {
		revealed[level] = slices.Clone(idx)
	}
	sess.Revealed = revealed
	return sess
}
