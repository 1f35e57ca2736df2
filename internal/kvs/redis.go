package kvs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// minTTL avoids Redis timing edge cases around sub-millisecond expirations.
const minTTL = 100 * time.Millisecond

// RedisStore implements Store over a shared, multiplexed go-redis client.
//
// Redis features used:
//   - SET with EX for TTL-based expiration
//   - GET for lookups
//   - DEL for removal
//   - SET NX EX + INCR (one MULTI/EXEC) for atomic counters that set TTL only once
//   - SCAN (never KEYS) for prefix enumeration, to avoid blocking the server
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvs: get %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 && ttl < minTTL {
		ttl = minTTL
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvs: set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvs: del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) IncrTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	pipe.SetNX(ctx, key, 0, ttl)
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("kvs: incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("kvs: scan %s*: %w", prefix, err)
	}
	return keys, nil
}
