package app

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// State is a player session's position in the game flow.
type State string

const (
	StateAnonymous State = "anonymous"
	StatePlaying   State = "playing"
	StateCompleted State = "completed"
	StateAdmin     State = "admin"
)

// Session is the transient per-connection context: who is playing, which hints
// they opened, whether they are an admin. It is never written to the durable store.
type Session struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Username  string        `json:"username,omitempty"`
	Level     int           `json:"level"`
	Admin     bool          `json:"admin"`
	Revealed  map[int][]int `json:"revealed,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// NewSession starts an anonymous session with a fresh ID.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		State:     StateAnonymous,
		Revealed:  make(map[int][]int),
		CreatedAt: time.Now(),
	}
}

// Clear drops everything but the session ID.
func (s *Session) Clear() {
	s.State = StateAnonymous
	s.Username = ""
	s.Level = 0
	s.Admin = false
	s.Revealed = make(map[int][]int)
}

// HintRevealed reports whether hint idx of level has been opened.
func (s *Session) HintRevealed(level, idx int) bool {
	return slices.Contains(s.Revealed[level], idx)
}

func (s *Session) reveal(level, idx int) {
	if s.Revealed == nil {
		s.Revealed = make(map[int][]int)
	}
	if s.HintRevealed(level, idx) {
		return
	}
	s.Revealed[level] = append(s.Revealed[level], idx)
	slices.Sort(s.Revealed[level])
}
