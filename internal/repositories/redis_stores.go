package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNonceStore keeps wallet-login challenges. A nonce can be consumed once.
type RedisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func nonceKey(nonce string) string { return "auth:nonce:" + nonce }

func (s *RedisNonceStore) Issue(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, nonceKey(nonce), 1, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("nonce collision")
	}
	return nil
}

// Consume reports whether the nonce was outstanding, deleting it either way.
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	_, err := s.client.GetDel(ctx, nonceKey(nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RedisIdempotencyStore remembers Idempotency-Key headers per caller.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// Reserve returns false when the key has already been seen within ttl.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, fmt.Sprintf("idem:%s:%s", scope, key), time.Now().Unix(), ttl).Result()
}

// Release forgets a key so a request that failed before reaching the engine
// can be retried with it.
func (s *RedisIdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.client.Del(ctx, fmt.Sprintf("idem:%s:%s", scope, key)).Err()
}

// RedisRateCounter is a fixed-window request counter.
type RedisRateCounter struct {
	client *redis.Client
}

func NewRedisRateCounter(client *redis.Client) *RedisRateCounter {
	return &RedisRateCounter{client: client}
}

func (c *RedisRateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := "rl:" + key
	count, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		c.client.Expire(ctx, k, window)
	}
	return count, nil
}

// RedisMarker records that a one-off side effect (a notification) already
// happened for a key.
type RedisMarker struct {
	client *redis.Client
	prefix string
}

func NewRedisMarker(client *redis.Client, prefix string) *RedisMarker {
	return &RedisMarker{client: client, prefix: prefix}
}

func (m *RedisMarker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+key, 1, ttl).Result()
}
