package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "bankledger:idempotency:"
	pendingMarker    = "\x00pending"
)

// IdempotencyStore implements usecase.IdempotencyStore on Redis. A reserved
// key holds a pending marker until the response is stored.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates an IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: defaultKeyPrefix,
	}
}

// Reserve claims key with SETNX so that only one request runs per key.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	claimed, err := s.client.SetNX(ctx, fullKey, pendingMarker, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if claimed {
		return true, nil, nil
	}

	stored, err := s.client.Get(ctx, fullKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired or released between the two calls; treat as in flight
		// so the caller retries instead of running twice.
		return false, nil, nil
	case err != nil:
		return false, nil, err
	case string(stored) == pendingMarker:
		return false, nil, nil
	}

	return false, stored, nil
}

// Complete replaces the pending marker with the final response.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, response, ttl).Err()
}

// Release deletes the key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
