package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptic-hunt/internal/domain"
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

// Store implements app.Store on SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT level, question, answer, hints, image_url FROM questions ORDER BY level`)
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
	row := s.db.QueryRowContext(ctx, `SELECT level, question, answer, hints, image_url FROM questions WHERE level = ?`, level)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func (s *Store) UpsertQuestion(ctx context.Context, q domain.Question) error {
	hints, err := json.Marshal(hintsOrEmpty(q.Hints))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO questions (level, question, answer, hints, image_url) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(level) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			hints = excluded.hints,
			image_url = excluded.image_url`,
		q.Level, q.Text, q.Answer, string(hints), q.ImageURL)
	if err != nil {
		return fmt.Errorf("upsert question %d: %w", q.Level, err)
	}
	return nil
}

func (s *Store) InsertQuestionIfAbsent(ctx context.Context, q domain.Question) (bool, error) {
	hints, err := json.Marshal(hintsOrEmpty(q.Hints))
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO questions (level, question, answer, hints, image_url) VALUES (?, ?, ?, ?, ?)`,
		q.Level, q.Text, q.Answer, string(hints), q.ImageURL)
	if err != nil {
		return false, fmt.Errorf("import question %d: %w", q.Level, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) DeleteQuestion(ctx context.Context, level int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE level = ?`, level); err != nil {
		return fmt.Errorf("delete question %d: %w", level, err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (username, password) VALUES (?, ?)`, u.Username, u.Password)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `SELECT username, password, level FROM users WHERE username = ?`, username).
		Scan(&u.Username, &u.Password, &u.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password, level FROM users ORDER BY level DESC, username ASC`)
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
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET level = ? WHERE username = ?`, level, username)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrPlayerNotFound
		}
		ts := at.UnixNano()
		if _, err := tx.ExecContext(ctx, `INSERT INTO leaderboard_events (username, level, reached_at) VALUES (?, ?, ?)`, username, level, ts); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE last_update SET updated_at = MAX(COALESCE(updated_at, ?), ?) WHERE id = 1`, ts, ts)
		return err
	})
}

func (s *Store) ResetUser(ctx context.Context, username string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET level = 0 WHERE username = ?`, username); err != nil {
			return err
		}
		return dropEvents(ctx, tx, username)
	})
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
			return err
		}
		return dropEvents(ctx, tx, username)
	})
}

func (s *Store) Standings(ctx context.Context) ([]domain.Standing, error) {
	rows, err := s.db.QueryContext(ctx, standingsQuery)
	if err != nil {
		return nil, fmt.Errorf("standings: %w", err)
	}
	defer rows.Close()
	out := []domain.Standing{}
	for rows.Next() {
		var st domain.Standing
		var ts int64
		if err := rows.Scan(&st.Username, &st.Level, &ts, &st.Position); err != nil {
			return nil, err
		}
		st.ReachedAt = time.Unix(0, ts).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	var ts sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM last_update WHERE id = 1`).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("last update: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, ts.Int64).UTC(), true, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func dropEvents(ctx context.Context, tx *sql.Tx, username string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard_events WHERE username = ?`, username); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE last_update SET updated_at = (SELECT MAX(reached_at) FROM leaderboard_events) WHERE id = 1`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row scanner) (domain.Question, error) {
	var q domain.Question
	var hints string
	if err := row.Scan(&q.Level, &q.Text, &q.Answer, &hints, &q.ImageURL); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal([]byte(hints), &q.Hints); err != nil {
		return domain.Question{}, fmt.Errorf("decode hints for level %d: %w", q.Level, err)
	}
	return q, nil
}

func hintsOrEmpty(h []string) []string {
	if h == nil {
		return []string{}
	}
	return h
}
