package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ai-chef/recipe-bot/pkg/redis"
)

// RedisLimiter tracks request timestamps in a sorted set so the sliding
// window is shared between replicas.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		log:    log,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID int64) (*Decision, error) {
	if l.limit <= 0 {
		return &Decision{Allowed: true, Remaining: 1}, nil
	}

	now := time.Now()
	windowStart := now.Add(-l.window)
	key := fmt.Sprintf("ratelimit:user:%d", userID)

	cutoff := float64(windowStart.UnixMilli())
	score := float64(now.UnixMilli())
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", cutoff))
	pipe.ZAdd(ctx, key, goredis.Z{Score: score, Member: member})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, l.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return nil, err
	}

	count, err := countCmd.Result()
	if err != nil {
		return nil, err
	}

	resetAt := now.Add(l.window)
	if oldest, err := oldestCmd.Result(); err == nil && len(oldest) > 0 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(l.window)
	}

	if count > int64(l.limit) {
		// Only allowed requests may occupy window slots; a denied
		// attempt left in the set would push resetAt further out.
		if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
			l.log.Warn("failed to release denied rate limit slot",
				slog.Int64("user_id", userID),
				slog.Any("error", err),
			)
		}

		return &Decision{Allowed: false, ResetAt: resetAt}, nil
	}

	return &Decision{
		Allowed:   true,
		Remaining: l.limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
