package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cryptic-hunt/internal/auth"
	"cryptic-hunt/internal/domain"
	"cryptic-hunt/internal/importer"
	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// requireAdmin rejects requests without a valid admin bearer token.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.ParseBearer(r.Header.Get("Authorization"), a.deps.JWTSecret)
		if err != nil || p.Kind != auth.KindAdmin {
			writeError(w, a.logger, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// audit records an admin mutation together with the principal behind it.
func (a *API) audit(r *http.Request, action string, args ...any) {
	by := ""
	if p, ok := auth.FromContext(r.Context()); ok {
		by = p.Name
	}
	a.logger.Info("admin action", append([]any{"action", action, "by", by}, args...)...)
}

func (a *API) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	sess, err := a.loadSession(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.deps.Game.AdminLogin(sess, req.Username, req.Password); err != nil {
		writeError(w, a.logger, err)
		return
	}
	now := time.Now()
	token, err := auth.Issue(a.deps.JWTSecret, req.Username, auth.KindAdmin, a.deps.TokenTTL, now)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.saveSession(w, r, sess); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: now.Add(a.deps.TokenTTL)})
}

func (a *API) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Questions.List(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) GetQuestionHandler(w http.ResponseWriter, r *http.Request) {
	level, err := levelParam(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	q, err := a.deps.Questions.Get(r.Context(), level)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) CreateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.deps.Questions.Upsert(r.Context(), q); err != nil {
		writeError(w, a.logger, err)
		return
	}
	a.audit(r, "create_question", "level", q.Level)
	writeJSON(w, http.StatusCreated, q)
}

func (a *API) UpdateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	level, err := levelParam(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, a.logger, err)
		return
	}
	q.Level = level
	if err := a.deps.Questions.Upsert(r.Context(), q); err != nil {
		writeError(w, a.logger, err)
		return
	}
	a.audit(r, "update_question", "level", q.Level)
	writeJSON(w, http.StatusOK, q)
}

func (a *API) DeleteQuestionHandler(w http.ResponseWriter, r *http.Request) {
	level, err := levelParam(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.deps.Questions.Delete(r.Context(), level); err != nil {
		writeError(w, a.logger, err)
		return
	}
	a.audit(r, "delete_question", "level", level)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ImportQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	feed, err := importer.ReadCSV(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		writeError(w, a.logger, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	res, err := a.deps.Questions.BulkImport(r.Context(), feed.Questions)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	res.Invalid += feed.Rejected
	a.audit(r, "import_questions", "inserted", res.Inserted, "skipped", res.Skipped, "invalid", res.Invalid)
	writeJSON(w, http.StatusOK, res)
}

func (a *API) ListPlayersHandler(w http.ResponseWriter, r *http.Request) {
	players, err := a.deps.Progress.Players(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (a *API) ResetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := a.deps.Progress.Reset(r.Context(), username); err != nil {
		writeError(w, a.logger, err)
		return
	}
	a.audit(r, "reset_player", "username", username)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) DeletePlayerHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := a.deps.Progress.Remove(r.Context(), username); err != nil {
		writeError(w, a.logger, err)
		return
	}
	a.audit(r, "remove_player", "username", username)
	w.WriteHeader(http.StatusNoContent)
}

func levelParam(r *http.Request) (int, error) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		return 0, fmt.Errorf("%w: level must be an integer", domain.ErrValidation)
	}
	return level, nil
}
