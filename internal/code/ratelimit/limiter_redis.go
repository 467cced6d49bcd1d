package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter over a Redis sorted set per key, scored
// by timestamp. Works across processes, which in-memory limiting cannot.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "refward:issue:"}
}

// Allow trims expired entries, counts the window, and records the attempt
// when allowed. The pipeline keeps round trips at one for the common path.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit window read: %w", err)
	}

	count := int(countCmd.Val())
	if count >= limit {
		return &Result{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	record := l.client.TxPipeline()
	record.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	record.Expire(ctx, redisKey, window)
	if _, err := record.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit window write: %w", err)
	}

	return &Result{Allowed: true, Remaining: limit - count - 1, ResetAt: now.Add(window)}, nil
}
