package service

import (
	"context"
	"fmt"
	"time"

	"github.com/chatterhq/identity-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a sliding-window log over Redis sorted sets
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// RateLimitResult reports the verdict for one request
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Allow records the request against the key's window and returns the verdict
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	if err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano())).Err(); err != nil {
		return nil, fmt.Errorf("failed to trim rate limit window: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count rate limit entries: %w", err)
	}

	if count >= int64(limit) {
		result := &RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: window}

		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(0, int64(oldest[0].Score))
			result.RetryAfter = (window - time.Since(oldestTime)).Round(time.Second)
		}

		return result, nil
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	if err := r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	}).Err(); err != nil {
		return nil, fmt.Errorf("failed to record rate limit entry: %w", err)
	}

	if err := r.redis.Client.Expire(ctx, redisKey, window+time.Minute).Err(); err != nil {
		// The set still trims itself by score on the next request.
		_ = err
	}

	remaining := limit - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{Allowed: true, Remaining: remaining}, nil
}
