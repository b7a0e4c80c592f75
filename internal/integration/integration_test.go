package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/app/apptest"
	"cryptic-hunt/internal/domain"
	"cryptic-hunt/internal/infra/postgres"
	infraredis "cryptic-hunt/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStoreSuite(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	pool := connectMigrated(t, ctx, pgURL)
	defer pool.Close()

	store := postgres.NewStore(pool)
	apptest.RunStoreSuite(t, func(t *testing.T) app.Store {
		truncate(t, ctx, pool)
		return store
	})
}

func TestHuntEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	pool := connectMigrated(t, ctx, pgURL)
	defer pool.Close()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := postgres.NewStore(pool)
	questions := app.NewQuestionService(store, logger)
	leaderboard := app.NewLeaderboardService(store, logger)
	notifier := infraredis.NewNotifier(redisClient, logger)
	if err := notifier.Listen(ctx, leaderboard); err != nil {
		t.Fatalf("listen: %v", err)
	}
	progress := app.NewProgressService(store, notifier, logger, app.WithInvalidator(leaderboard))
	game := app.NewGameService(questions, progress, leaderboard, app.AdminCredentials{Username: "admin", Password: "admin2025"}, logger)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	if _, err := questions.BulkImport(ctx, []domain.Question{
		{Level: 0, Text: "What is 2 + 2?", Answer: "4", Hints: []string{"fingers"}},
		{Level: 1, Text: "Capital of France?", Answer: "Paris"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updates, unsubscribe, err := leaderboard.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()
	<-updates

	sess := app.NewSession()
	if _, err := game.Start(ctx, sess, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sessions.Save(ctx, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}

	resumed, err := sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	res, err := game.Submit(ctx, resumed, "4")
	if err != nil || !res.Correct {
		t.Fatalf("submit: res=%+v err=%v", res, err)
	}

	// The change travels through Redis pub/sub before reaching subscribers.
	deadline := time.After(10 * time.Second)
	for {
		select {
		case board := <-updates:
			if len(board.Standings) == 1 && board.Standings[0].Username == "alice" && board.Standings[0].Level == 1 {
				return
			}
		case <-deadline:
			t.Fatalf("no leaderboard update relayed through redis")
		}
	}
}

func connectMigrated(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	if _, err := postgres.Migrate(ctx, dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Second run must be a no-op.
	if applied, err := postgres.Migrate(ctx, dsn); err != nil || len(applied) != 0 {
		t.Fatalf("re-migrate: applied=%v err=%v", applied, err)
	}
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	return pool
}

func truncate(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE users, questions, leaderboard_events`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE last_update SET updated_at = NULL`); err != nil {
		t.Fatalf("reset marker: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "hunt", "POSTGRES_PASSWORD": "huntpass", "POSTGRES_DB": "huntdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://hunt:huntpass@%s:%s/huntdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(context.Background())
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(context.Background())
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
