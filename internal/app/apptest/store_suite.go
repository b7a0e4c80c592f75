// Package apptest holds behaviour tests shared by every app.Store backend.
package apptest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/domain"
)

// RunStoreSuite exercises a Store implementation. newStore must return an empty store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) app.Store) {
	t.Helper()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("questions upsert replaces", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		q := domain.Question{Level: 5, Text: "Q5", Answer: "first", Hints: []string{"a", "https://example.com"}, ImageURL: "https://img.example.com/5.png"}
		if err := s.UpsertQuestion(ctx, q); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		q.Answer = "second"
		if err := s.UpsertQuestion(ctx, q); err != nil {
			t.Fatalf("upsert 2: %v", err)
		}
		list, err := s.ListQuestions(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 || list[0].Answer != "second" {
			t.Fatalf("expected one row with replaced answer, got %+v", list)
		}
		if len(list[0].Hints) != 2 || list[0].Hints[1] != "https://example.com" || list[0].ImageURL != q.ImageURL {
			t.Fatalf("hints or image not round-tripped: %+v", list[0])
		}
	})

	t.Run("questions ordered and deletable", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, lvl := range []int{2, 0, 1} {
			if err := s.UpsertQuestion(ctx, domain.Question{Level: lvl, Text: "q", Answer: "a"}); err != nil {
				t.Fatalf("upsert %d: %v", lvl, err)
			}
		}
		list, _ := s.ListQuestions(ctx)
		for i, q := range list {
			if q.Level != i {
				t.Fatalf("expected ascending levels, got %+v", list)
			}
		}
		if err := s.DeleteQuestion(ctx, 1); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteQuestion(ctx, 1); err != nil {
			t.Fatalf("delete must be idempotent: %v", err)
		}
		if _, err := s.GetQuestion(ctx, 1); !errors.Is(err, domain.ErrQuestionNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("insert if absent keeps existing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_ = s.UpsertQuestion(ctx, domain.Question{Level: 0, Text: "edited", Answer: "manual", Hints: []string{"h"}})
		inserted, err := s.InsertQuestionIfAbsent(ctx, domain.Question{Level: 0, Text: "csv", Answer: "csv"})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if inserted {
			t.Fatalf("expected existing level to be kept")
		}
		q, _ := s.GetQuestion(ctx, 0)
		if q.Answer != "manual" || len(q.Hints) != 1 {
			t.Fatalf("existing row changed: %+v", q)
		}
		inserted, err = s.InsertQuestionIfAbsent(ctx, domain.Question{Level: 1, Text: "csv", Answer: "csv"})
		if err != nil || !inserted {
			t.Fatalf("expected insert of new level, inserted=%v err=%v", inserted, err)
		}
	})

	t.Run("users create once", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		created, err := s.CreateUser(ctx, domain.User{Username: "alice", Password: "pw"})
		if err != nil || !created {
			t.Fatalf("create: created=%v err=%v", created, err)
		}
		created, err = s.CreateUser(ctx, domain.User{Username: "alice", Password: "other"})
		if err != nil || created {
			t.Fatalf("duplicate create: created=%v err=%v", created, err)
		}
		if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, domain.ErrPlayerNotFound) {
			t.Fatalf("expected player not found, got %v", err)
		}
	})

	t.Run("advance updates level and standings together", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.CreateUser(ctx, domain.User{Username: "alice", Password: "pw"})
		_, _ = s.CreateUser(ctx, domain.User{Username: "bob", Password: "pw"})
		_, _ = s.CreateUser(ctx, domain.User{Username: "carol", Password: "pw"})

		mustAdvance(t, s, "alice", 1, base)
		mustAdvance(t, s, "bob", 1, base.Add(time.Second))
		mustAdvance(t, s, "alice", 2, base.Add(2*time.Second))
		mustAdvance(t, s, "alice", 3, base.Add(3*time.Second))
		mustAdvance(t, s, "bob", 2, base.Add(4*time.Second))
		mustAdvance(t, s, "bob", 3, base.Add(5*time.Second))

		u, err := s.GetUser(ctx, "alice")
		if err != nil || u.Level != 3 {
			t.Fatalf("expected alice at 3, got %+v err=%v", u, err)
		}
		standings, err := s.Standings(ctx)
		if err != nil {
			t.Fatalf("standings: %v", err)
		}
		if len(standings) != 2 {
			t.Fatalf("carol has no events and must be excluded: %+v", standings)
		}
		if standings[0].Username != "alice" || standings[0].Position != 1 || standings[1].Username != "bob" || standings[1].Position != 2 {
			t.Fatalf("expected alice ahead of bob, got %+v", standings)
		}
		if !standings[0].ReachedAt.Equal(base.Add(3 * time.Second)) {
			t.Fatalf("unexpected reachedAt %v", standings[0].ReachedAt)
		}

		last, ok, err := s.LastUpdate(ctx)
		if err != nil || !ok || !last.Equal(base.Add(5*time.Second)) {
			t.Fatalf("expected last update at latest event, got %v ok=%v err=%v", last, ok, err)
		}

		if err := s.AdvanceUser(ctx, "ghost", 1, base); !errors.Is(err, domain.ErrPlayerNotFound) {
			t.Fatalf("expected player not found, got %v", err)
		}
	})

	t.Run("ties are stable", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, name := range []string{"zed", "amy"} {
			_, _ = s.CreateUser(ctx, domain.User{Username: name, Password: "pw"})
			mustAdvance(t, s, name, 1, base)
		}
		first, _ := s.Standings(ctx)
		for i := 0; i < 5; i++ {
			again, _ := s.Standings(ctx)
			if again[0].Username != first[0].Username {
				t.Fatalf("order changed: %+v vs %+v", first, again)
			}
		}
	})

	t.Run("reset and remove", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.CreateUser(ctx, domain.User{Username: "alice", Password: "pw"})
		_, _ = s.CreateUser(ctx, domain.User{Username: "bob", Password: "pw"})
		mustAdvance(t, s, "alice", 1, base)
		mustAdvance(t, s, "bob", 1, base.Add(time.Minute))

		if err := s.ResetUser(ctx, "bob"); err != nil {
			t.Fatalf("reset: %v", err)
		}
		u, _ := s.GetUser(ctx, "bob")
		if u.Level != 0 {
			t.Fatalf("expected level 0 after reset, got %d", u.Level)
		}
		last, ok, _ := s.LastUpdate(ctx)
		if !ok || !last.Equal(base) {
			t.Fatalf("marker must follow remaining events, got %v ok=%v", last, ok)
		}

		if err := s.DeleteUser(ctx, "alice"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetUser(ctx, "alice"); !errors.Is(err, domain.ErrPlayerNotFound) {
			t.Fatalf("expected alice gone, got %v", err)
		}
		standings, _ := s.Standings(ctx)
		if len(standings) != 0 {
			t.Fatalf("expected empty standings, got %+v", standings)
		}
		if _, ok, _ := s.LastUpdate(ctx); ok {
			t.Fatalf("expected no last update without events")
		}

		users, _ := s.ListUsers(ctx)
		if len(users) != 1 || users[0].Username != "bob" {
			t.Fatalf("unexpected users %+v", users)
		}
	})

	t.Run("concurrent advances keep level and events in step", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		const players, levels = 6, 5
		names := make([]string, players)
		for i := range names {
			names[i] = fmt.Sprintf("player%d", i)
			_, _ = s.CreateUser(ctx, domain.User{Username: names[i], Password: "pw"})
		}
		// player i reaches level l at base + (i*levels + l) seconds
		at := func(i, l int) time.Time { return base.Add(time.Duration(i*levels+l) * time.Second) }

		var writers sync.WaitGroup
		for i, name := range names {
			writers.Add(1)
			go func(i int, name string) {
				defer writers.Done()
				for l := 1; l <= levels; l++ {
					if err := s.AdvanceUser(ctx, name, l, at(i, l)); err != nil {
						t.Errorf("advance %s to %d: %v", name, l, err)
						return
					}
				}
			}(i, name)
		}

		stop := make(chan struct{})
		var readers sync.WaitGroup
		for r := 0; r < 2; r++ {
			readers.Add(1)
			go func() {
				defer readers.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					for _, name := range names {
						u, err := s.GetUser(ctx, name)
						if err != nil {
							t.Errorf("get %s: %v", name, err)
							return
						}
						standings, err := s.Standings(ctx)
						if err != nil {
							t.Errorf("standings: %v", err)
							return
						}
						st, ok := domain.PositionOf(standings, name)
						if u.Level > 0 && (!ok || st.Level < u.Level) {
							t.Errorf("%s is at level %d but its best event is %+v (present=%v)", name, u.Level, st, ok)
							return
						}
					}
				}
			}()
		}

		writers.Wait()
		close(stop)
		readers.Wait()

		standings, err := s.Standings(ctx)
		if err != nil {
			t.Fatalf("standings: %v", err)
		}
		if len(standings) != players {
			t.Fatalf("expected %d ranked players, got %+v", players, standings)
		}
		for _, name := range names {
			u, _ := s.GetUser(ctx, name)
			st, ok := domain.PositionOf(standings, name)
			if !ok || u.Level != levels || st.Level != u.Level {
				t.Fatalf("%s: level %d, standing %+v present=%v", name, u.Level, st, ok)
			}
		}
		last, ok, err := s.LastUpdate(ctx)
		if err != nil || !ok || !last.Equal(at(players-1, levels)) {
			t.Fatalf("expected last update %v, got %v ok=%v err=%v", at(players-1, levels), last, ok, err)
		}

		// a reset racing an advance must not pull the marker below the newest event
		_, _ = s.CreateUser(ctx, domain.User{Username: "late", Password: "pw"})
		latest := at(players, levels)
		var race sync.WaitGroup
		race.Add(2)
		go func() {
			defer race.Done()
			if err := s.AdvanceUser(ctx, "late", 1, latest); err != nil {
				t.Errorf("advance late: %v", err)
			}
		}()
		go func() {
			defer race.Done()
			if err := s.ResetUser(ctx, names[0]); err != nil {
				t.Errorf("reset: %v", err)
			}
		}()
		race.Wait()
		last, ok, err = s.LastUpdate(ctx)
		if err != nil || !ok || !last.Equal(latest) {
			t.Fatalf("expected last update %v after racing reset, got %v ok=%v err=%v", latest, last, ok, err)
		}
	})
}

func mustAdvance(t *testing.T, s app.Store, username string, level int, at time.Time) {
	t.Helper()
	if err := s.AdvanceUser(context.Background(), username, level, at); err != nil {
		t.Fatalf("advance %s to %d: %v", username, level, err)
	}
}
