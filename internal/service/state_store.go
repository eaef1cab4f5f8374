package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatterhq/identity-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// ErrStateUnknown means the state nonce was never issued, expired, or
// was already consumed. It is distinct from a store failure: the
// caller treats the former as a CSRF signal and the latter as an
// internal error.
var ErrStateUnknown = errors.New("oauth state unknown or already consumed")

// OAuthStateStore persists short-lived OAuth state nonces in Redis.
// A state is consumable exactly once; abandoned states expire with
// their TTL and are never consumed.
type OAuthStateStore struct {
	redis *database.Redis
}

// NewOAuthStateStore creates a new OAuth state store
func NewOAuthStateStore(redis *database.Redis) *OAuthStateStore {
	return &OAuthStateStore{redis: redis}
}

func (s *OAuthStateStore) key(state string) string {
	return fmt.Sprintf("oauth_state:%s", state)
}

// Put stores a state nonce for the given provider with a TTL
func (s *OAuthStateStore) Put(ctx context.Context, state, provider string, ttl time.Duration) error {
	if err := s.redis.Client.Set(ctx, s.key(state), provider, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes a state nonce, returning the
// provider it was issued for. A second consume of the same state fails.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (string, error) {
	provider, err := s.redis.Client.GetDel(ctx, s.key(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateUnknown
		}
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return provider, nil
}
