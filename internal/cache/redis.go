package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"estate-analytics/internal/observability"
)

// RedisStore implements Store on Redis. Every call is bounded by opTimeout.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
	metrics   *observability.Metrics
}

// NewRedisStore wraps client. A zero opTimeout defaults to 5s.
func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration, metrics *observability.Metrics) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &RedisStore{client: client, opTimeout: opTimeout, metrics: metrics}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// Per-operation context deadlines only reach the socket with this set.
	opts.ContextTimeoutEnabled = true
	return redis.NewClient(opts), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.RecordCacheOp("get", nil)
		return nil, ErrCacheMiss
	}
	s.metrics.RecordCacheOp("get", err)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNoTTL
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.client.Set(ctx, key, value, ttl).Err()
	s.metrics.RecordCacheOp("set", err)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ttl, err := s.client.TTL(ctx, key).Result()
	s.metrics.RecordCacheOp("ttl", err)
	if err != nil {
		return 0, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	return ttl, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.client.Expire(ctx, key, ttl).Err()
	s.metrics.RecordCacheOp("expire", err)
	if err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// Scan walks the keyspace with SCAN; it never blocks the server like KEYS.
func (s *RedisStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	err := iter.Err()
	s.metrics.RecordCacheOp("scan", err)
	if err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.client.Del(ctx, keys...).Err()
	s.metrics.RecordCacheOp("delete", err)
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
