package app

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cryptic-hunt/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LeaderboardService ranks players from leaderboard events and pushes fresh
// boards to subscribers. Nothing is cached: every read hits the store, and
// concurrent identical reads share one in-flight query as long as no write
// has committed since that query started.
type LeaderboardService struct {
	repo   LeaderboardRepository
	logger *slog.Logger
	sf     singleflight.Group
	gen    atomic.Uint64

	mu          sync.Mutex
	subscribers map[chan domain.Board]*subscription
}

// subscription remembers the generation of the last board delivered, so an
// older board computed concurrently never overwrites a newer one.
type subscription struct {
	delivered bool
	gen       uint64
}

func NewLeaderboardService(repo LeaderboardRepository, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		repo:        repo,
		logger:      logger,
		subscribers: make(map[chan domain.Board]*subscription),
	}
}

// Invalidate marks every in-flight standings query as stale. Writers call it
// once their change has committed; later reads never join an older query.
func (s *LeaderboardService) Invalidate() {
	s.gen.Add(1)
}

// Standings returns the current ranked view. An empty board is an empty slice.
func (s *LeaderboardService) Standings(ctx context.Context) ([]domain.Standing, error) {
	return s.standingsAt(ctx, s.gen.Load())
}

func (s *LeaderboardService) standingsAt(ctx context.Context, gen uint64) ([]domain.Standing, error) {
	key := "standings:" + strconv.FormatUint(gen, 10)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.repo.Standings(ctx)
	})
	if err != nil {
		return nil, err
	}
	shared := result.([]domain.Standing)
	out := make([]domain.Standing, len(shared))
	copy(out, shared)
	return out, nil
}

// RankOf returns the player's standing or domain.ErrNotRanked.
func (s *LeaderboardService) RankOf(ctx context.Context, username string) (domain.Standing, error) {
	standings, err := s.Standings(ctx)
	if err != nil {
		return domain.Standing{}, err
	}
	st, ok := domain.PositionOf(standings, username)
	if !ok {
		return domain.Standing{}, domain.ErrNotRanked
	}
	return st, nil
}

// LastUpdate returns the most recent event time; false when there are no events.
func (s *LeaderboardService) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	return s.repo.LastUpdate(ctx)
}

// Board combines standings with the last-update marker.
func (s *LeaderboardService) Board(ctx context.Context) (domain.Board, error) {
	board, _, err := s.board(ctx)
	return board, err
}

func (s *LeaderboardService) board(ctx context.Context) (domain.Board, uint64, error) {
	gen := s.gen.Load()
	standings, err := s.standingsAt(ctx, gen)
	if err != nil {
		return domain.Board{}, 0, err
	}
	updated, _, err := s.repo.LastUpdate(ctx)
	if err != nil {
		return domain.Board{}, 0, err
	}
	return domain.Board{Standings: standings, UpdatedAt: updated}, gen, nil
}

// Subscribe returns a channel that receives the current board and every later one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Board, func(), error) {
	ch := make(chan domain.Board, 8)

	// registered before the first read so a write in between still reaches us
	s.mu.Lock()
	s.subscribers[ch] = &subscription{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}

	initial, gen, err := s.board(ctx)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	s.mu.Lock()
	if sub, ok := s.subscribers[ch]; ok {
		s.deliverLocked(ch, sub, initial, gen)
	}
	s.mu.Unlock()
	return ch, cancel, nil
}

// Notify recomputes the board and fans it out to local subscribers.
func (s *LeaderboardService) Notify(ctx context.Context) error {
	s.Invalidate()

	s.mu.Lock()
	idle := len(s.subscribers) == 0
	s.mu.Unlock()
	if idle {
		return nil
	}

	board, gen, err := s.board(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, sub := range s.subscribers {
		s.deliverLocked(ch, sub, board, gen)
	}
	return nil
}

func (s *LeaderboardService) deliverLocked(ch chan domain.Board, sub *subscription, board domain.Board, gen uint64) {
	if sub.delivered && gen < sub.gen {
		return
	}
	select {
	case ch <- board:
	default:
		// full buffer: drop the oldest queued board
		select {
		case <-ch:
		default:
		}
		ch <- board
	}
	sub.delivered = true
	sub.gen = gen
}

// SubscriberCount reports how many live subscriptions exist.
func (s *LeaderboardService) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
