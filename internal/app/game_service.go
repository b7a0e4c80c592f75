package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cryptic-hunt/internal/domain"
)

// WrongAnswerMessage is shown when a submission does not match.
const WrongAnswerMessage = "Submit correct answer to progress to the next level!"

// AdminCredentials are compared in plain text; see DESIGN.md for the known gap.
type AdminCredentials struct {
	Username string
	Password string
}

// GameService drives a Session through Anonymous → Playing → Completed, or Admin.
type GameService struct {
	questions   *QuestionService
	progress    *ProgressService
	leaderboard *LeaderboardService
	admin       AdminCredentials
	logger      *slog.Logger
}

func NewGameService(questions *QuestionService, progress *ProgressService, leaderboard *LeaderboardService, admin AdminCredentials, logger *slog.Logger) *GameService {
	return &GameService{
		questions:   questions,
		progress:    progress,
		leaderboard: leaderboard,
		admin:       admin,
		logger:      logger,
	}
}

// QuestionView is the player-facing part of a question; the answer stays server-side.
type QuestionView struct {
	Round     int    `json:"round"`
	Text      string `json:"question"`
	ImageURL  string `json:"imageUrl,omitempty"`
	HintCount int    `json:"hintCount"`
}

// PlayerStats is the "Your Stats" card.
type PlayerStats struct {
	Position     int    `json:"position"`
	Level        int    `json:"level"`
	Medal        string `json:"medal,omitempty"`
	Percentile   int    `json:"percentile"`
	TotalPlayers int    `json:"totalPlayers"`
}

// View is everything a client needs to render the session.
type View struct {
	SessionID   string        `json:"sessionId"`
	State       State         `json:"state"`
	Username    string        `json:"username,omitempty"`
	Level       int           `json:"level"`
	TotalLevels int           `json:"totalLevels"`
	Question    *QuestionView `json:"question,omitempty"`
	Hints       []domain.Hint `json:"hints,omitempty"`
	Stats       *PlayerStats  `json:"stats,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// AnswerResult is the outcome of a submission.
type AnswerResult struct {
	Correct   bool   `json:"correct"`
	Level     int    `json:"level"`
	Completed bool   `json:"completed"`
	Message   string `json:"message,omitempty"`
}

// Start registers a new player or resumes an existing one.
func (g *GameService) Start(ctx context.Context, sess *Session, name string) (View, error) {
	if sess.State != StateAnonymous {
		return View{}, domain.ErrInvalidTransition
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return View{}, fmt.Errorf("%w: please enter a name to continue", domain.ErrValidation)
	}
	if _, err := g.progress.Register(ctx, name); err != nil {
		return View{}, err
	}
	sess.Username = name
	sess.State = StatePlaying
	return g.View(ctx, sess)
}

// Submit checks an answer for the session's current question.
func (g *GameService) Submit(ctx context.Context, sess *Session, answer string) (AnswerResult, error) {
	if sess.State != StatePlaying {
		return AnswerResult{}, domain.ErrInvalidTransition
	}
	questions, err := g.sync(ctx, sess)
	if err != nil {
		return AnswerResult{}, err
	}
	if sess.State == StateCompleted {
		return AnswerResult{Correct: false, Level: sess.Level, Completed: true}, nil
	}

	current := questions[sess.Level]
	if !domain.MatchAnswer(current.Answer, answer) {
		return AnswerResult{Correct: false, Level: sess.Level, Message: WrongAnswerMessage}, nil
	}

	next := sess.Level + 1
	if err := g.progress.Advance(ctx, sess.Username, next); err != nil {
		return AnswerResult{}, err
	}
	sess.Level = next
	if sess.Level >= len(questions) {
		sess.State = StateCompleted
	}
	return AnswerResult{Correct: true, Level: sess.Level, Completed: sess.State == StateCompleted}, nil
}

// RevealHint opens hint idx of the current question and returns it.
func (g *GameService) RevealHint(ctx context.Context, sess *Session, idx int) (domain.Hint, error) {
	if sess.State != StatePlaying {
		return domain.Hint{}, domain.ErrInvalidTransition
	}
	questions, err := g.sync(ctx, sess)
	if err != nil {
		return domain.Hint{}, err
	}
	if sess.State == StateCompleted {
		return domain.Hint{}, domain.ErrInvalidTransition
	}
	hints := questions[sess.Level].Hints
	if idx < 0 || idx >= len(hints) {
		return domain.Hint{}, fmt.Errorf("%w: no hint %d for this round", domain.ErrValidation, idx+1)
	}
	sess.reveal(sess.Level, idx)
	return domain.NewHint(idx, hints[idx]), nil
}

// AdminLogin switches an anonymous session into admin mode.
func (g *GameService) AdminLogin(sess *Session, username, password string) error {
	if sess.State != StateAnonymous {
		return domain.ErrInvalidTransition
	}
	if g.admin.Username == "" || username != g.admin.Username || password != g.admin.Password {
		return domain.ErrUnauthorized
	}
	sess.Username = username
	sess.Admin = true
	sess.State = StateAdmin
	g.logger.Info("admin logged in", "session", sess.ID)
	return nil
}

// Logout returns the session to Anonymous and forgets all transient state.
func (g *GameService) Logout(sess *Session) {
	sess.Clear()
}

// View renders the session, refreshing the level from the store first.
func (g *GameService) View(ctx context.Context, sess *Session) (View, error) {
	v := View{SessionID: sess.ID, State: sess.State, Username: sess.Username}
	if sess.State != StatePlaying && sess.State != StateCompleted {
		return v, nil
	}

	questions, err := g.sync(ctx, sess)
	if err != nil {
		return View{}, err
	}
	v.State = sess.State
	v.Level = sess.Level
	v.TotalLevels = len(questions)

	if sess.State == StatePlaying {
		q := questions[sess.Level]
		v.Question = &QuestionView{Round: q.Level, Text: q.Text, ImageURL: q.ImageURL, HintCount: len(q.Hints)}
		for _, idx := range sess.Revealed[sess.Level] {
			if idx < len(q.Hints) {
				v.Hints = append(v.Hints, domain.NewHint(idx, q.Hints[idx]))
			}
		}
	} else {
		v.Message = fmt.Sprintf("Congratulations %s, you've answered all the questions!", sess.Username)
	}

	standings, err := g.leaderboard.Standings(ctx)
	if err != nil {
		return View{}, err
	}
	if st, ok := domain.PositionOf(standings, sess.Username); ok {
		v.Stats = &PlayerStats{
			Position:     st.Position,
			Level:        st.Level,
			Medal:        domain.Medal(st.Position),
			Percentile:   domain.Percentile(st.Position, len(standings)),
			TotalPlayers: len(standings),
		}
	} else if sess.State == StatePlaying {
		v.Message = "Complete a level to appear on the leaderboard!"
	}
	return v, nil
}

// sync reloads the question list and the player's stored level, so admin
// resets and question edits take effect on the next command.
func (g *GameService) sync(ctx context.Context, sess *Session) ([]domain.Question, error) {
	questions, err := g.questions.List(ctx)
	if err != nil {
		return nil, err
	}
	level, err := g.progress.Level(ctx, sess.Username)
	if err != nil && !errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, err
	}
	if level != sess.Level {
		sess.Revealed = make(map[int][]int)
	}
	sess.Level = level
	if sess.Level >= len(questions) {
		sess.State = StateCompleted
	} else {
		sess.State = StatePlaying
	}
	return questions, nil
}
