// Package cache is the key-value read path shared by the engines and the
// HTTP read API. Every entry written here carries an explicit TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrCacheMiss is returned when a key does not exist.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoTTL is returned by Set when ttl is not positive.
	ErrNoTTL = errors.New("cache entries require a positive ttl")
)

// TTL sentinels mirror the Redis TTL replies.
const (
	NoExpiry   time.Duration = -1
	KeyMissing time.Duration = -2
)

// Key patterns and default lifetimes.
const (
	TrendPattern  = "trend:*"
	ReportPattern = "report:*"

	TrendTTL  = time.Hour
	ReportTTL = 10 * time.Minute
)

// Store is a key-value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TTL returns the remaining lifetime, NoExpiry or KeyMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Scan returns every key matching a glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// TrendKey returns the cache key of a market trend. An empty category is "all".
func TrendKey(city, category string) string {
	if category == "" {
		category = "all"
	}
	return "trend:" + city + ":" + category
}

// ReportKey returns the cache key of a comparable report.
func ReportKey(listingID int64) string {
	return "report:" + strconv.FormatInt(listingID, 10)
}

// Cache encodes values with a Codec on top of a Store.
type Cache struct {
	store Store
	codec Codec
}

// New creates a Cache. A nil codec defaults to JSON.
func New(store Store, codec Codec) *Cache {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Cache{store: store, codec: codec}
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// SetObject encodes v and stores it under key for ttl.
func (c *Cache) SetObject(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := c.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.store.Set(ctx, key, data, ttl)
}

// GetObject loads key into v. Returns ErrCacheMiss if absent.
func (c *Cache) GetObject(ctx context.Context, key string, v any) error {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := c.codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// EnsureTTL gives every key matching pattern that has no expiry the ttl.
// Per-key failures do not stop the pass; they are joined into the error.
func EnsureTTL(ctx context.Context, store Store, pattern string, ttl time.Duration) (int, error) {
	keys, err := store.Scan(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", pattern, err)
	}

	fixed := 0
	var errs []error
	for _, key := range keys {
		remaining, err := store.TTL(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("ttl %s: %w", key, err))
			continue
		}
		if remaining != NoExpiry {
			continue
		}
		if err := store.Expire(ctx, key, ttl); err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", key, err))
			continue
		}
		fixed++
	}
	return fixed, errors.Join(errs...)
}
