package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptic-hunt/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const standingsQuery = `
WITH best AS (
	SELECT username, level, reached_at,
		ROW_NUMBER() OVER (PARTITION BY username ORDER BY level DESC, reached_at ASC, id ASC) AS rn
	FROM leaderboard_events
)
SELECT username, level, reached_at,
	ROW_NUMBER() OVER (ORDER BY level DESC, reached_at ASC, username ASC) AS position
FROM best
WHERE rn = 1
ORDER BY position`

// Store implements app.Store on Postgres through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT level, question, answer, hints, image_url FROM questions ORDER BY level`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) GetQuestion(ctx context.Context, level int) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `SELECT level, question, answer, hints, image_url FROM questions WHERE level = $1`, level)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func (s *Store) UpsertQuestion(ctx context.Context, q domain.Question) error {
	hints, err := encodeHints(q.Hints)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (level, question, answer, hints, image_url) VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (level) DO UPDATE SET
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			hints = EXCLUDED.hints,
			image_url = EXCLUDED.image_url`,
		q.Level, q.Text, q.Answer, hints, q.ImageURL)
	if err != nil {
		return fmt.Errorf("upsert question %d: %w", q.Level, err)
	}
	return nil
}

func (s *Store) InsertQuestionIfAbsent(ctx context.Context, q domain.Question) (bool, error) {
	hints, err := encodeHints(q.Hints)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO questions (level, question, answer, hints, image_url) VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (level) DO NOTHING`,
		q.Level, q.Text, q.Answer, hints, q.ImageURL)
	if err != nil {
		return false, fmt.Errorf("import question %d: %w", q.Level, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, level int) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE level = $1`, level); err != nil {
		return fmt.Errorf("delete question %d: %w", level, err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (bool, error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO users (username, password) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING`, u.Username, u.Password)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `SELECT username, password, level FROM users WHERE username = $1`, username).
		Scan(&u.Username, &u.Password, &u.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT username, password, level FROM users ORDER BY level DESC, username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.Password, &u.Level); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) AdvanceUser(ctx context.Context, username string, level int, at time.Time) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := lockMarker(ctx, tx); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE users SET level = $1 WHERE username = $2`, level, username)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrPlayerNotFound
		}
		if _, err := tx.Exec(ctx, `INSERT INTO leaderboard_events (username, level, reached_at) VALUES ($1, $2, $3)`, username, level, at); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE last_update SET updated_at = GREATEST(COALESCE(updated_at, $1), $1) WHERE id = 1`, at)
		return err
	})
}

func (s *Store) ResetUser(ctx context.Context, username string) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := lockMarker(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET level = 0 WHERE username = $1`, username); err != nil {
			return err
		}
		return dropEvents(ctx, tx, username)
	})
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := lockMarker(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE username = $1`, username); err != nil {
			return err
		}
		return dropEvents(ctx, tx, username)
	})
}

func (s *Store) Standings(ctx context.Context) ([]domain.Standing, error) {
	rows, err := s.pool.Query(ctx, standingsQuery)
	if err != nil {
		return nil, fmt.Errorf("standings: %w", err)
	}
	defer rows.Close()
	out := []domain.Standing{}
	for rows.Next() {
		var st domain.Standing
		var position int64
		if err := rows.Scan(&st.Username, &st.Level, &st.ReachedAt, &position); err != nil {
			return nil, err
		}
		st.Position = int(position)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT updated_at FROM last_update WHERE id = 1`).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("last update: %w", err)
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}

// lockMarker serialises event writers on the last_update row. It must run
// first so every later statement in the transaction sees the events
// committed by the previous holder.
func lockMarker(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT 1 FROM last_update WHERE id = 1 FOR UPDATE`); err != nil {
		return fmt.Errorf("lock last_update: %w", err)
	}
	return nil
}

func dropEvents(ctx context.Context, tx pgx.Tx, username string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard_events WHERE username = $1`, username); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE last_update SET updated_at = (SELECT MAX(reached_at) FROM leaderboard_events) WHERE id = 1`)
	return err
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	var raw []byte
	if err := row.Scan(&q.Level, &q.Text, &q.Answer, &raw, &q.ImageURL); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(raw, &q.Hints); err != nil {
		return domain.Question{}, fmt.Errorf("decode hints for level %d: %w", q.Level, err)
	}
	return q, nil
}

func encodeHints(h []string) (string, error) {
	if h == nil {
		h = []string{}
	}
	b, err := json.Marshal(h)
	return string(b), err
}
