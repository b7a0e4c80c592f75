package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	game        *app.GameService
	leaderboard *app.LeaderboardService
	sessions    app.SessionRepository
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewWSHandler(game *app.GameService, leaderboard *app.LeaderboardService, sessions app.SessionRepository, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		game:        game,
		leaderboard: leaderboard,
		sessions:    sessions,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type hintPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one game session over the socket.
// Passing ?session=<id> resumes a session created over REST or a previous socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.resolveSession(r)
	if err != nil {
		h.logger.Error("ws session lookup failed", "error", err)
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.leaderboard.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case board, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: board}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if view, err := h.game.View(ctx, sess); err != nil {
		send <- errorMessage(err)
	} else {
		send <- outboundMessage[any]{Type: "view", Payload: view}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		sess = h.reload(r, sess)
		for _, msg := range h.handle(r, sess, inbound) {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one command to the session and returns the replies to send.
func (h *WSHandler) handle(r *http.Request, sess *app.Session, inbound inboundMessage) []outboundMessage[any] {
	ctx := r.Context()
	switch inbound.Type {
	case "start":
		var payload startRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}}
		}
		view, err := h.game.Start(ctx, sess, payload.Name)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		h.persist(r, sess)
		return []outboundMessage[any]{{Type: "view", Payload: view}}

	case "answer":
		var payload answerRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}}
		}
		res, err := h.game.Submit(ctx, sess, payload.Answer)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		h.persist(r, sess)
		out := []outboundMessage[any]{{Type: "answerResult", Payload: res}}
		if res.Correct {
			if view, err := h.game.View(ctx, sess); err == nil {
				out = append(out, outboundMessage[any]{Type: "view", Payload: view})
			}
		}
		return out

	case "hint":
		var payload hintPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid hint payload"}}}
		}
		hint, err := h.game.RevealHint(ctx, sess, payload.Index)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		h.persist(r, sess)
		return []outboundMessage[any]{{Type: "hint", Payload: hint}}

	case "view":
		view, err := h.game.View(ctx, sess)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "view", Payload: view}}

	case "logout":
		h.game.Logout(sess)
		if err := h.sessions.Delete(ctx, sess.ID); err != nil {
			h.logger.Warn("ws session delete failed", "session", sess.ID, "error", err)
		}
		view, _ := h.game.View(ctx, sess)
		return []outboundMessage[any]{{Type: "view", Payload: view}}

	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}}
	}
}

func (h *WSHandler) resolveSession(r *http.Request) (*app.Session, error) {
	id := r.URL.Query().Get("session")
	if id == "" {
		return app.NewSession(), nil
	}
	sess, err := h.sessions.Get(r.Context(), id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return app.NewSession(), nil
	}
	return sess, err
}

// reload picks up changes made to the same session over REST since the last
// command. A missing stored copy of a session that was saved before means it
// was logged out or expired elsewhere.
func (h *WSHandler) reload(r *http.Request, sess *app.Session) *app.Session {
	stored, err := h.sessions.Get(r.Context(), sess.ID)
	switch {
	case err == nil:
		return stored
	case errors.Is(err, domain.ErrSessionNotFound):
		if sess.State != app.StateAnonymous {
			sess.Clear()
		}
		return sess
	default:
		h.logger.Warn("ws session reload failed", "session", sess.ID, "error", err)
		return sess
	}
}

func (h *WSHandler) persist(r *http.Request, sess *app.Session) {
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Warn("ws session save failed", "session", sess.ID, "error", err)
	}
}

func errorMessage(err error) outboundMessage[any] {
	msg := err.Error()
	if statusFor(err) == http.StatusInternalServerError {
		msg = "internal error"
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
