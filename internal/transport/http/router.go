package http

import (
	"log/slog"
	"net/http"
	"time"

	"cryptic-hunt/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Game        *app.GameService
	Questions   *app.QuestionService
	Progress    *app.ProgressService
	Leaderboard *app.LeaderboardService
	Sessions    app.SessionRepository
	JWTSecret   string
	TokenTTL    time.Duration
	PublicURL   string
	Logger      *slog.Logger
}

// NewRouter mounts the REST API, the websocket endpoint and the join QR code.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = 12 * time.Hour
	}
	api := &API{deps: d, logger: d.Logger}
	ws := NewWSHandler(d.Game, d.Leaderboard, d.Sessions, d.Logger)

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.AllowAll().Handler)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/ws", ws.ServeWS)
	mux.Get("/qr.png", api.QRHandler)

	mux.Route("/api", func(r chi.Router) {
		r.Use(middleware.Logger)

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", api.LeaderboardHandler)
			r.Get("/{username}", api.RankHandler)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", api.GetSessionHandler)
			r.Post("/", api.StartSessionHandler)
			r.Delete("/", api.LogoutHandler)
			r.Post("/answer", api.AnswerHandler)
			r.Post("/hints/{index}", api.HintHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", api.AdminLoginHandler)

			r.Group(func(r chi.Router) {
				r.Use(api.requireAdmin)

				r.Get("/questions", api.ListQuestionsHandler)
				r.Post("/questions", api.CreateQuestionHandler)
				r.Post("/questions/import", api.ImportQuestionsHandler)
				r.Get("/questions/{level}", api.GetQuestionHandler)
				r.Put("/questions/{level}", api.UpdateQuestionHandler)
				r.Delete("/questions/{level}", api.DeleteQuestionHandler)

				r.Get("/players", api.ListPlayersHandler)
				r.Post("/players/{username}/reset", api.ResetPlayerHandler)
				r.Delete("/players/{username}", api.DeletePlayerHandler)
			})
		})
	})
	return mux
}

// API holds the REST handlers.
type API struct {
	deps   Deps
	logger *slog.Logger
}
