package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps player sessions in Redis as JSON with a sliding TTL.
// Sessions are transient: expiry is the same as logout.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, sess *app.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (*app.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess app.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Revealed == nil {
		sess.Revealed = make(map[int][]int)
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.key(id), s.ttl).Err()
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) key(id string) string {
	return "hunt:session:" + id
}
