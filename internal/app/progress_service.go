package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cryptic-hunt/internal/domain"
)

// DefaultPlayerPassword is stored for self-registered players.
const DefaultPlayerPassword = "dummy_password"

// ProgressService tracks each player's current level.
type ProgressService struct {
	players         PlayerRepository
	notifier        ChangeNotifier
	invalidator     Invalidator
	logger          *slog.Logger
	now             func() time.Time
	defaultPassword string
}

// ProgressOption customises a ProgressService.
type ProgressOption func(*ProgressService)

// WithClock overrides the event timestamp source; used by tests.
func WithClock(now func() time.Time) ProgressOption {
	return func(s *ProgressService) { s.now = now }
}

// WithDefaultPassword sets the placeholder password for self-registered players.
func WithDefaultPassword(pw string) ProgressOption {
	return func(s *ProgressService) {
		if pw != "" {
			s.defaultPassword = pw
		}
	}
}

// WithInvalidator registers a reader to invalidate after every committed write.
// Needed when the notifier delivers changes asynchronously, as the Redis relay does.
func WithInvalidator(inv Invalidator) ProgressOption {
	return func(s *ProgressService) { s.invalidator = inv }
}

func NewProgressService(players PlayerRepository, notifier ChangeNotifier, logger *slog.Logger, opts ...ProgressOption) *ProgressService {
	s := &ProgressService{
		players:         players,
		notifier:        notifier,
		logger:          logger,
		now:             time.Now,
		defaultPassword: DefaultPlayerPassword,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a player at level 0. It returns false if the name is taken.
func (s *ProgressService) Register(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	created, err := s.players.CreateUser(ctx, domain.User{Username: username, Password: s.defaultPassword})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("player registered", "username", username)
	}
	return created, nil
}

// Level returns the player's current level, 0 for unknown players.
func (s *ProgressService) Level(ctx context.Context, username string) (int, error) {
	u, err := s.players.GetUser(ctx, username)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return u.Level, nil
}

// Advance moves the player to newLevel and records the leaderboard event.
func (s *ProgressService) Advance(ctx context.Context, username string, newLevel int) error {
	if newLevel < 0 {
		return fmt.Errorf("%w: level must be non-negative", domain.ErrValidation)
	}
	if err := s.players.AdvanceUser(ctx, username, newLevel, s.now()); err != nil {
		return err
	}
	s.logger.Info("player advanced", "username", username, "level", newLevel)
	s.changed(ctx)
	return nil
}

// Reset puts the player back to level 0 and drops their leaderboard events.
func (s *ProgressService) Reset(ctx context.Context, username string) error {
	if err := s.players.ResetUser(ctx, username); err != nil {
		return err
	}
	s.logger.Info("player progress reset", "username", username)
	s.changed(ctx)
	return nil
}

// Remove deletes the player and their leaderboard events.
func (s *ProgressService) Remove(ctx context.Context, username string) error {
	if err := s.players.DeleteUser(ctx, username); err != nil {
		return err
	}
	s.logger.Info("player removed", "username", username)
	s.changed(ctx)
	return nil
}

// Players lists all registered players, highest level first.
func (s *ProgressService) Players(ctx context.Context) ([]domain.User, error) {
	return s.players.ListUsers(ctx)
}

func (s *ProgressService) changed(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	if s.notifier == nil {
		return
	}
	// the write already committed
	if err := s.notifier.Notify(ctx); err != nil {
		s.logger.Warn("leaderboard notification failed", "error", err)
	}
}
