package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/domain"
	"cryptic-hunt/internal/infra/memory"
)

type testEnv struct {
	store       *memory.Store
	questions   *app.QuestionService
	progress    *app.ProgressService
	leaderboard *app.LeaderboardService
	game        *app.GameService
}

// newTestEnv wires services over an in-memory store with a clock that ticks
// one second per event, so ranking by time is deterministic.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	var mu sync.Mutex
	tick := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}

	questions := app.NewQuestionService(store, logger)
	leaderboard := app.NewLeaderboardService(store, logger)
	progress := app.NewProgressService(store, leaderboard, logger, app.WithClock(clock))
	game := app.NewGameService(questions, progress, leaderboard, app.AdminCredentials{Username: "admin", Password: "admin2025"}, logger)

	ctx := context.Background()
	for _, q := range []domain.Question{
		{Level: 0, Text: "2+2?", Answer: "4", Hints: []string{"count", "https://example.com/math"}},
		{Level: 1, Text: "Capital of France?", Answer: "paris"},
	} {
		if err := questions.Upsert(ctx, q); err != nil {
			t.Fatalf("seed question %d: %v", q.Level, err)
		}
	}
	return &testEnv{store: store, questions: questions, progress: progress, leaderboard: leaderboard, game: game}
}

func TestEndToEndPlaythrough(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := app.NewSession()

	view, err := env.game.Start(ctx, sess, "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.State != app.StatePlaying || view.Level != 0 || view.Question == nil || view.Question.Text != "2+2?" {
		t.Fatalf("unexpected initial view %+v", view)
	}

	res, err := env.game.Submit(ctx, sess, "4")
	if err != nil || !res.Correct || res.Level != 1 {
		t.Fatalf("submit 4: %+v err=%v", res, err)
	}
	if lvl, _ := env.progress.Level(ctx, "alice"); lvl != 1 {
		t.Fatalf("expected level 1, got %d", lvl)
	}
	standings, _ := env.leaderboard.Standings(ctx)
	if len(standings) != 1 || standings[0].Username != "alice" || standings[0].Level != 1 || standings[0].Position != 1 {
		t.Fatalf("unexpected standings %+v", standings)
	}

	res, err = env.game.Submit(ctx, sess, "Paris")
	if err != nil || !res.Correct || !res.Completed {
		t.Fatalf("submit Paris: %+v err=%v", res, err)
	}
	if sess.State != app.StateCompleted {
		t.Fatalf("expected completed, got %s", sess.State)
	}
	if _, err := env.game.Submit(ctx, sess, "anything"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition after completion, got %v", err)
	}
}

func TestWrongAnswerKeepsLevel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := app.NewSession()
	_, _ = env.game.Start(ctx, sess, "bob")

	res, err := env.game.Submit(ctx, sess, " 4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct || res.Message != app.WrongAnswerMessage {
		t.Fatalf("expected whitespace-sensitive mismatch, got %+v", res)
	}
	if _, err := env.leaderboard.RankOf(ctx, "bob"); !errors.Is(err, domain.ErrNotRanked) {
		t.Fatalf("expected bob unranked, got %v", err)
	}
}

func TestStartResumesReturningPlayer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := app.NewSession()
	_, _ = env.game.Start(ctx, first, "alice")
	_, _ = env.game.Submit(ctx, first, "4")
	env.game.Logout(first)
	if first.State != app.StateAnonymous || first.Username != "" {
		t.Fatalf("expected cleared session, got %+v", first)
	}

	second := app.NewSession()
	view, err := env.game.Start(ctx, second, "alice")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if view.Level != 1 || view.Question.Text != "Capital of France?" {
		t.Fatalf("expected resume at level 1, got %+v", view)
	}
	if view.Stats == nil || view.Stats.Position != 1 || view.Stats.Medal == "" {
		t.Fatalf("expected stats for ranked player, got %+v", view.Stats)
	}
}

func TestRevealHint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := app.NewSession()
	_, _ = env.game.Start(ctx, sess, "carol")

	hint, err := env.game.RevealHint(ctx, sess, 1)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !hint.Link || hint.Index != 1 {
		t.Fatalf("expected link hint, got %+v", hint)
	}
	if _, err := env.game.RevealHint(ctx, sess, 5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing hint, got %v", err)
	}
	view, _ := env.game.View(ctx, sess)
	if len(view.Hints) != 1 || view.Hints[0].Index != 1 {
		t.Fatalf("expected one revealed hint in view, got %+v", view.Hints)
	}

	_, _ = env.game.Submit(ctx, sess, "4")
	view, _ = env.game.View(ctx, sess)
	if len(view.Hints) != 0 {
		t.Fatalf("hints of a new level start hidden, got %+v", view.Hints)
	}
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	sess := app.NewSession()
	if err := env.game.AdminLogin(sess, "admin", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.game.AdminLogin(sess, "admin", "admin2025"); err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if sess.State != app.StateAdmin || !sess.Admin {
		t.Fatalf("expected admin session, got %+v", sess)
	}
	if _, err := env.game.Start(context.Background(), sess, "alice"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("admin cannot start playing without logout, got %v", err)
	}
}

func TestAdminResetIsSeenBySession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := app.NewSession()
	_, _ = env.game.Start(ctx, sess, "alice")
	_, _ = env.game.Submit(ctx, sess, "4")

	if err := env.progress.Reset(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	view, err := env.game.View(ctx, sess)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Level != 0 || view.Stats != nil {
		t.Fatalf("expected session back at level 0 and unranked, got %+v", view)
	}
}

func TestStartRequiresName(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.game.Start(context.Background(), app.NewSession(), "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
