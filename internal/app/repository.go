package app

import (
	"context"
	"time"

	"cryptic-hunt/internal/domain"
)

// QuestionRepository persists the question bank keyed by level.
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	GetQuestion(ctx context.Context, level int) (domain.Question, error)
	// UpsertQuestion inserts or replaces the row at q.Level.
	UpsertQuestion(ctx context.Context, q domain.Question) error
	// InsertQuestionIfAbsent never overwrites an existing level.
	InsertQuestionIfAbsent(ctx context.Context, q domain.Question) (bool, error)
	DeleteQuestion(ctx context.Context, level int) error
}

// PlayerRepository persists players and their leaderboard events.
type PlayerRepository interface {
	// CreateUser returns false if the username is taken.
	CreateUser(ctx context.Context, u domain.User) (bool, error)
	GetUser(ctx context.Context, username string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// AdvanceUser sets the level and appends the event in one transaction.
	AdvanceUser(ctx context.Context, username string, level int, at time.Time) error
	ResetUser(ctx context.Context, username string) error
	DeleteUser(ctx context.Context, username string) error
}

// LeaderboardRepository derives rankings from stored events.
type LeaderboardRepository interface {
	Standings(ctx context.Context) ([]domain.Standing, error)
	LastUpdate(ctx context.Context) (time.Time, bool, error)
}

// Store is the full persistence contract implemented by memory, sqlite and postgres backends.
type Store interface {
	QuestionRepository
	PlayerRepository
	LeaderboardRepository
	Close() error
}

// SessionRepository abstracts where transient player sessions live (in-memory, Redis).
type SessionRepository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// ChangeNotifier is told whenever leaderboard events are appended or removed.
type ChangeNotifier interface {
	Notify(ctx context.Context) error
}

// Invalidator is told synchronously once a player write has committed, before
// the writer returns. The leaderboard uses it to stop sharing older reads.
type Invalidator interface {
	Invalidate()
}
