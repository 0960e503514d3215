// Package cache stores checkauth session tokens. Tokens are short-lived,
// shared across instances, and safe to lose on restart, which makes Redis
// the natural home; an in-memory store backs tests and single-instance runs.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore issues and validates exchange session tokens
type TokenStore interface {
	// Store registers a token with a TTL
	Store(ctx context.Context, token string, ttl time.Duration) error
	// Valid reports whether the token exists and has not expired
	Valid(ctx context.Context, token string) (bool, error)
}

// RedisTokenStore implements TokenStore using Redis. Suitable for
// distributed deployments where any instance may serve any protocol call
// of the same exchange session.
type RedisTokenStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTokenStore creates a store with an existing Redis client
func NewRedisTokenStore(client *redis.Client, keyPrefix string) *RedisTokenStore {
	if keyPrefix == "" {
		keyPrefix = "exchange:session:"
	}
	return &RedisTokenStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Ensure RedisTokenStore implements TokenStore
var _ TokenStore = (*RedisTokenStore)(nil)

// Store registers a token with a TTL
func (s *RedisTokenStore) Store(ctx context.Context, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

// Valid reports whether the token exists and has not expired
func (s *RedisTokenStore) Valid(ctx context.Context, token string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session token: %w", err)
	}
	return exists > 0, nil
}
