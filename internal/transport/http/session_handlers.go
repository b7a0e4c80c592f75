package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SessionCookie carries the session ID for REST clients.
const SessionCookie = "hunt_session"

type startRequest struct {
	Name string `json:"name"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// loadSession returns the caller's session, or a fresh anonymous one when the
// cookie is absent or has expired.
func (a *API) loadSession(r *http.Request) (*app.Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return app.NewSession(), nil
	}
	sess, err := a.deps.Sessions.Get(r.Context(), c.Value)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return app.NewSession(), nil
	}
	return sess, err
}

func (a *API) saveSession(w http.ResponseWriter, r *http.Request, sess *app.Session) error {
	if err := a.deps.Sessions.Save(r.Context(), sess); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *API) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := a.loadSession(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	view, err := a.deps.Game.View(r.Context(), sess)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	// View may have advanced the session to Completed.
	if sess.State != app.StateAnonymous {
		if err := a.saveSession(w, r, sess); err != nil {
			writeError(w, a.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	sess, err := a.loadSession(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	view, err := a.deps.Game.Start(r.Context(), sess, req.Name)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.saveSession(w, r, sess); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	sess, err := a.loadSession(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	res, err := a.deps.Game.Submit(r.Context(), sess, req.Answer)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.saveSession(w, r, sess); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) HintHandler(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, a.logger, fmt.Errorf("%w: hint index must be an integer", domain.ErrValidation))
		return
	}
	sess, err := a.loadSession(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	hint, err := a.deps.Game.RevealHint(r.Context(), sess, idx)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if err := a.saveSession(w, r, sess); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hint)
}

func (a *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := a.deps.Sessions.Delete(r.Context(), c.Value); err != nil {
			writeError(w, a.logger, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}
