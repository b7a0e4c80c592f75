package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cryptic-hunt/internal/domain"
)

// Store is an in-process implementation of app.Store. One RWMutex serialises
// writers, so a reader never sees a level without its leaderboard event.
type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	questions  map[int]domain.Question
	events     []domain.LeaderboardEvent
	lastUpdate time.Time
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		questions: make(map[int]domain.Question),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, cloneQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (s *Store) GetQuestion(_ context.Context, level int) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[level]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *Store) UpsertQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.Level] = cloneQuestion(q)
	return nil
}

func (s *Store) InsertQuestionIfAbsent(_ context.Context, q domain.Question) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.Level]; ok {
		return false, nil
	}
	s.questions[q.Level] = cloneQuestion(q)
	return true, nil
}

func (s *Store) DeleteQuestion(_ context.Context, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, level)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return false, nil
	}
	u.Level = 0
	s.users[u.Username] = u
	return true, nil
}

func (s *Store) GetUser(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return domain.User{}, domain.ErrPlayerNotFound
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Store) AdvanceUser(_ context.Context, username string, level int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	u.Level = level
	s.users[username] = u
	s.events = append(s.events, domain.LeaderboardEvent{Username: username, Level: level, ReachedAt: at})
	if at.After(s.lastUpdate) {
		s.lastUpdate = at
	}
	return nil
}

func (s *Store) ResetUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.Level = 0
		s.users[username] = u
	}
	s.dropEventsLocked(username)
	return nil
}

func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
	s.dropEventsLocked(username)
	return nil
}

func (s *Store) Standings(_ context.Context) ([]domain.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.RankEvents(s.events), nil
}

func (s *Store) LastUpdate(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate, !s.lastUpdate.IsZero(), nil
}

// dropEventsLocked removes a player's events and recomputes the marker.
func (s *Store) dropEventsLocked(username string) {
	kept := s.events[:0]
	var latest time.Time
	for _, ev := range s.events {
		if ev.Username == username {
			continue
		}
		kept = append(kept, ev)
		if ev.ReachedAt.After(latest) {
			latest = ev.ReachedAt
		}
	}
	s.events = kept
	s.lastUpdate = latest
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Hints = append([]string(nil), q.Hints...)
	return q
}
