package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatterhq/identity-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// LoginLockout counts login failures per email in Redis with a rolling
// window. The counter key expires with the window, so locks clear
// themselves.
type LoginLockout struct {
	redis       *database.Redis
	maxFailures int
	window      time.Duration
}

// NewLoginLockout creates a new login lockout tracker
func NewLoginLockout(redis *database.Redis, maxFailures int, window time.Duration) *LoginLockout {
	return &LoginLockout{
		redis:       redis,
		maxFailures: maxFailures,
		window:      window,
	}
}

func (l *LoginLockout) key(email string) string {
	return fmt.Sprintf("login_failures:%s", email)
}

// Failed records a failure and reports whether the account is now locked
func (l *LoginLockout) Failed(ctx context.Context, email string) (bool, error) {
	key := l.key(email)

	count, err := l.redis.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment failure counter: %w", err)
	}

	// Start the window on the first failure only; later failures must
	// not push the expiry out.
	if count == 1 {
		if err := l.redis.Client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set failure counter expiry: %w", err)
		}
	}

	return count >= int64(l.maxFailures), nil
}

// IsLocked reports whether the email has reached the failure threshold
func (l *LoginLockout) IsLocked(ctx context.Context, email string) (bool, error) {
	count, err := l.redis.Client.Get(ctx, l.key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read failure counter: %w", err)
	}

	return count >= int64(l.maxFailures), nil
}

// Reset clears the failure counter after a successful login
func (l *LoginLockout) Reset(ctx context.Context, email string) error {
	if err := l.redis.Client.Del(ctx, l.key(email)).Err(); err != nil {
		return fmt.Errorf("failed to reset failure counter: %w", err)
	}
	return nil
}
