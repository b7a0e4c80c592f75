package http

import (
	"net/http"

	"cryptic-hunt/internal/domain"
	"github.com/go-chi/chi/v5"
)

type rankResponse struct {
	Username   string `json:"username"`
	Position   int    `json:"position"`
	Level      int    `json:"level"`
	Medal      string `json:"medal,omitempty"`
	Percentile int    `json:"percentile"`
	Total      int    `json:"totalPlayers"`
}

func (a *API) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	board, err := a.deps.Leaderboard.Board(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) RankHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	standings, err := a.deps.Leaderboard.Standings(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	st, ok := domain.PositionOf(standings, username)
	if !ok {
		writeError(w, a.logger, domain.ErrNotRanked)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{
		Username:   st.Username,
		Position:   st.Position,
		Level:      st.Level,
		Medal:      domain.Medal(st.Position),
		Percentile: domain.Percentile(st.Position, len(standings)),
		Total:      len(standings),
	})
}
