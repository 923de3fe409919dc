package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps steps in Redis so several bot instances share them.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client; ttl <= 0 selects DefaultTTL and an empty prefix selects "weatherbot".
func NewRedisStore(client redis.Cmdable, ttl time.Duration, prefix string) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "weatherbot"
	}
	return &RedisStore{client: client, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) key(chatID int64) string {
	return fmt.Sprintf("%s:conv_step:%d", s.prefix, chatID)
}

// Get returns the stored step or StepIdle when the key is absent.
func (s *RedisStore) Get(ctx context.Context, chatID int64) (Step, error) {
	v, err := s.client.Get(ctx, s.key(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return StepIdle, nil
	}
	if err != nil {
		return StepIdle, fmt.Errorf("state: get step: %w", err)
	}
	return Step(v), nil
}

// Set stores step with the configured TTL. Setting StepIdle clears it.
func (s *RedisStore) Set(ctx context.Context, chatID int64, step Step) error {
	if step == StepIdle {
		return s.Clear(ctx, chatID)
	}
	if err := s.client.Set(ctx, s.key(chatID), string(step), s.ttl).Err(); err != nil {
		return fmt.Errorf("state: set step: %w", err)
	}
	return nil
}

// Clear deletes the step for chatID.
func (s *RedisStore) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("state: clear step: %w", err)
	}
	return nil
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("state: redis ping %s: %w", opts.Addr, err)
	}
	return c, nil
}
