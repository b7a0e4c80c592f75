package app

import (
	"context"
	"errors"
	"log/slog"

	"cryptic-hunt/internal/domain"
)

// QuestionService manages the question bank.
type QuestionService struct {
	repo   QuestionRepository
	logger *slog.Logger
}

func NewQuestionService(repo QuestionRepository, logger *slog.Logger) *QuestionService {
	return &QuestionService{repo: repo, logger: logger}
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// List returns all questions in play order.
func (s *QuestionService) List(ctx context.Context) ([]domain.Question, error) {
	return s.repo.ListQuestions(ctx)
}

func (s *QuestionService) Get(ctx context.Context, level int) (domain.Question, error) {
	return s.repo.GetQuestion(ctx, level)
}

// Hints returns the hints for a level, or an empty slice if the level is unknown.
func (s *QuestionService) Hints(ctx context.Context, level int) ([]string, error) {
	q, err := s.repo.GetQuestion(ctx, level)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if q.Hints == nil {
		return []string{}, nil
	}
	return q.Hints, nil
}

// Upsert inserts or replaces the question at q.Level.
func (s *QuestionService) Upsert(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpsertQuestion(ctx, q); err != nil {
		return err
	}
	s.logger.Info("question saved", "level", q.Level)
	return nil
}

// Delete removes a level. Deleting a missing level is not an error.
func (s *QuestionService) Delete(ctx context.Context, level int) error {
	if err := s.repo.DeleteQuestion(ctx, level); err != nil {
		return err
	}
	s.logger.Info("question deleted", "level", level)
	return nil
}

// BulkImport inserts rows whose level is not yet taken. Existing levels are left untouched
// so manual edits survive a re-import; malformed rows are counted and skipped.
func (s *QuestionService) BulkImport(ctx context.Context, rows []domain.Question) (ImportResult, error) {
	var res ImportResult
	for _, q := range rows {
		if err := q.Validate(); err != nil {
			s.logger.Warn("skipping invalid import row", "level", q.Level, "error", err)
			res.Invalid++
			continue
		}
		inserted, err := s.repo.InsertQuestionIfAbsent(ctx, q)
		if err != nil {
			return res, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	s.logger.Info("questions imported", "inserted", res.Inserted, "skipped", res.Skipped, "invalid", res.Invalid)
	return res, nil
}
