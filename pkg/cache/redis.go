package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisKeyPrefix namespaces façade entries in a shared Redis instance.
const redisKeyPrefix = "facade:entry:"

// RedisStore is a Store backed by a shared Redis instance, for deployments
// running more than one façade process. All connector operations go through
// the circuit breaker.
type RedisStore struct {
	redis   *redis.Client
	breaker *Breaker
	logger  zerolog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:   redisClient,
		breaker: NewBreaker(logger),
		logger:  logger,
	}
}

// Get retrieves the entry for key. Returns ErrCacheMiss if absent and
// ErrBreakerOpen while the breaker is rejecting operations.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	if !s.breaker.Allow() {
		return nil, ErrBreakerOpen
	}

	data, err := s.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			s.breaker.Success()
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		s.breaker.Failure()
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}
	s.breaker.Success()

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	cacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores an entry, replacing any previous one wholesale. Entries carry no
// Redis TTL: validity is decided by the TTL policy at read time and expired
// payloads must remain available for stale-serve.
func (s *RedisStore) Set(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if !s.breaker.Allow() {
		return ErrBreakerOpen
	}

	data, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKeyPrefix+entry.Key, data, 0).Err(); err != nil {
		s.breaker.Failure()
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	s.breaker.Success()

	return nil
}

// Touch refreshes only the entry's StoredAt, keeping payload and validator
// unchanged.
func (s *RedisStore) Touch(ctx context.Context, key string, at time.Time) error {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if at.After(entry.StoredAt) {
		entry.StoredAt = at
	}
	return s.Set(ctx, entry)
}

// Ping checks Redis reachability for the health probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.breaker.Failure()
		return fmt.Errorf("redis ping: %w", err)
	}
	s.breaker.Success()
	return nil
}

// BreakerOpen reports whether the connector's circuit breaker is open.
func (s *RedisStore) BreakerOpen() bool {
	return s.breaker.Open()
}
