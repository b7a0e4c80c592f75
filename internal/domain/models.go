package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxHints is the number of hint slots a question carries.
const MaxHints = 3

// User is a registered player and their progress counter.
type User struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Level    int    `json:"level"`
}

// Question is one round of the hunt. Level doubles as play order.
type Question struct {
	Level    int      `json:"level"`
	Text     string   `json:"question"`
	Answer   string   `json:"answer"`
	Hints    []string `json:"hints"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// Validate checks the fields an upsert must satisfy and normalises hints in place.
func (q *Question) Validate() error {
	if q.Level < 0 {
		return fmt.Errorf("%w: level must be a non-negative integer, got %d", ErrValidation, q.Level)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question text is required", ErrValidation)
	}
	if q.Answer == "" {
		return fmt.Errorf("%w: answer is required", ErrValidation)
	}
	q.Hints = NormalizeHints(q.Hints)
	if len(q.Hints) > MaxHints {
		return fmt.Errorf("%w: at most %d hints, got %d", ErrValidation, MaxHints, len(q.Hints))
	}
	q.ImageURL = strings.TrimSpace(q.ImageURL)
	return nil
}

// NormalizeHints drops blank entries and the "nan" marker left by empty CSV cells.
func NormalizeHints(hints []string) []string {
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		h = strings.TrimSpace(h)
		if h == "" || strings.EqualFold(h, "nan") {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Hint is a single clue as shown to a player.
type Hint struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Link  bool   `json:"link"`
}

// NewHint classifies a raw hint string.
func NewHint(index int, text string) Hint {
	return Hint{Index: index, Text: text, Link: IsLink(text)}
}

// IsLink reports whether a hint should be rendered as a link.
func IsLink(hint string) bool {
	return strings.HasPrefix(hint, "http")
}

// LeaderboardEvent records a player reaching a level at a point in time.
type LeaderboardEvent struct {
	Username  string    `json:"username"`
	Level     int       `json:"level"`
	ReachedAt time.Time `json:"reachedAt"`
}

// Standing is one deduplicated, ranked leaderboard row.
type Standing struct {
	Username  string    `json:"username"`
	Level     int       `json:"level"`
	ReachedAt time.Time `json:"reachedAt"`
	Position  int       `json:"position"`
}

// Board is a snapshot of the standings pushed to subscribers.
type Board struct {
	Standings []Standing `json:"standings"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MatchAnswer compares answers case-insensitively. Whitespace is significant.
func MatchAnswer(expected, submitted string) bool {
	return strings.EqualFold(expected, submitted)
}
