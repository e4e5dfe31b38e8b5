package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jrsteele09/servicedesk/tokenstore"
)

// Store keeps the session token under one Redis key
type Store struct {
	redis *goredis.Client
	key   string
	ttl   time.Duration
}

var _ tokenstore.Store = (*Store)(nil)

// New wraps client. A zero ttl keeps the token until Clear.
func New(client *goredis.Client, key string, ttl time.Duration) *Store {
	return &Store{redis: client, key: key, ttl: ttl}
}

// Dial connects to addr and checks the server answers
func Dial(ctx context.Context, addr, key string, ttl time.Duration) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[Dial] ping %s: %w", addr, err)
	}
	return New(client, key, ttl), nil
}

func (s *Store) Load(ctx context.Context) (string, error) {
	token, err := s.redis.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", tokenstore.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("[Load] get %s: %w", s.key, err)
	}
	return token, nil
}

func (s *Store) Save(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token is required")
	}
	if err := s.redis.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("[Save] set %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("[Clear] del %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.redis.Close()
}
