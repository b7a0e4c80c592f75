package redis

import (
	"context"
	"log/slog"
	"time"

	"cryptic-hunt/internal/app"
	"github.com/redis/go-redis/v9"
)

// LeaderboardChannel carries "leaderboard changed" signals between instances.
const LeaderboardChannel = "hunt:leaderboard:changed"

// Notifier publishes leaderboard change signals over Redis pub/sub so every
// instance sharing the store refreshes its websocket subscribers.
type Notifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewNotifier(client *redis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Notify implements app.ChangeNotifier.
func (n *Notifier) Notify(ctx context.Context) error {
	return n.client.Publish(ctx, LeaderboardChannel, time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

// Listen forwards every published signal to target until ctx is done.
// It returns once the subscription is confirmed by the server.
func (n *Notifier) Listen(ctx context.Context, target app.ChangeNotifier) error {
	sub := n.client.Subscribe(ctx, LeaderboardChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				if err := target.Notify(ctx); err != nil {
					n.logger.Warn("leaderboard refresh failed", "error", err)
				}
			}
		}
	}()
	return nil
}
