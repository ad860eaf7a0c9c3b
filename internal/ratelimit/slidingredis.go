package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding is a sliding-window limiter backed by Redis sorted sets. It is
// stricter than Fixed at window edges.
type Sliding struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
}

// Allow implements Limiter.
func (l Sliding) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	until := now.Add(l.Window)
	if l.Max <= 0 || l.Window <= 0 {
		return Decision{Allowed: true, Limit: int64(l.Max), Remaining: int64(l.Max), Reset: until}, nil
	}
	if l.Client == nil {
		return Decision{}, errors.New("ratelimit: redis client not configured")
	}

	redisKey := l.Prefix + key
	member := fmt.Sprintf("%s:%s", key, uuid.NewString())
	cutoff := float64(now.Add(-l.Window).UnixNano())

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	current := countCmd.Val()
	remaining := int64(l.Max) - current
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   current <= int64(l.Max),
		Limit:     int64(l.Max),
		Remaining: remaining,
		Reset:     until,
	}, nil
}
