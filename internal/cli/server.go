package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/config"
	"cryptic-hunt/internal/importer"
	"cryptic-hunt/internal/infra/memory"
	redisinfra "cryptic-hunt/internal/infra/redis"
	transport "cryptic-hunt/internal/transport/http"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the hunt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	questions := app.NewQuestionService(store, logger)
	leaderboard := app.NewLeaderboardService(store, logger)

	// With Redis, every instance publishes changes and relays them to its own subscribers.
	var notifier app.ChangeNotifier = leaderboard
	var sessions app.SessionRepository
	if redisClient != nil {
		n := redisinfra.NewNotifier(redisClient, logger)
		if err := n.Listen(ctx, leaderboard); err != nil {
			return err
		}
		notifier = n
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	progress := app.NewProgressService(store, notifier, logger,
		app.WithInvalidator(leaderboard),
		app.WithDefaultPassword(cfg.Game.DefaultPassword),
	)
	game := app.NewGameService(questions, progress, leaderboard, app.AdminCredentials{
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
	}, logger)

	seedQuestions(ctx, questions, cfg.Game.QuestionsCSV, logger)

	secret := cfg.Admin.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("admin.jwt_secret not set; generated an ephemeral one, tokens will not survive a restart")
	}

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.Deps{
			Game:        game,
			Questions:   questions,
			Progress:    progress,
			Leaderboard: leaderboard,
			Sessions:    sessions,
			JWTSecret:   secret,
			TokenTTL:    config.TTLDuration(cfg.Admin.TokenTTL, 12*time.Hour),
			PublicURL:   cfg.Server.PublicURL,
			Logger:      logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting hunt server", "port", finalPort, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedQuestions imports the CSV feed when present. Levels that already exist are kept.
func seedQuestions(ctx context.Context, questions *app.QuestionService, path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	feed, err := importer.ReadCSVFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no question feed found, skipping seed", "path", path)
		return
	}
	if err != nil {
		logger.Error("question feed unreadable", "path", path, "error", err)
		return
	}
	if feed.Rejected > 0 {
		logger.Warn("question feed rows with a non-integer round were skipped", "path", path, "count", feed.Rejected)
	}
	if _, err := questions.BulkImport(ctx, feed.Questions); err != nil {
		logger.Error("question seed failed", "path", path, "error", err)
	}
}
