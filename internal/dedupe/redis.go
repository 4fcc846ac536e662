package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "jobs:dedupe:"

// RedisStore is a Store shared by every worker replica.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore parses a redis:// URL and returns a store whose claims expire after ttl.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: defaultPrefix, ttl: ttl}
}

// Claim implements Store with SET NX; a losing claim compares the stored id.
func (s *RedisStore) Claim(ctx context.Context, key, id string) (bool, error) {
	k := s.prefix + key

	ok, err := s.client.SetNX(ctx, k, id, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return true, nil
	}

	owner, err := s.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between the two calls
		return s.Claim(ctx, key, id)
	case err != nil:
		return false, fmt.Errorf("read claim %s: %w", key, err)
	}

	if owner != id {
		return false, nil
	}
	if err := s.client.Expire(ctx, k, s.ttl).Err(); err != nil {
		return false, fmt.Errorf("refresh claim %s: %w", key, err)
	}
	return true, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// New returns a RedisStore when redisURL is set and an in-process Cache otherwise.
func New(ctx context.Context, redisURL string, capacity int, ttl time.Duration) (Store, error) {
	if redisURL == "" {
		return NewCache(capacity, ttl), nil
	}
	s, err := NewRedisStore(redisURL, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return s, nil
}
