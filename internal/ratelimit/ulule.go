package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewStore returns a Redis-backed limiter store, or an in-process one when
// rdb is nil.
func NewStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: prefix}
	if rdb == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, opts)
}

// Fixed is a fixed-window limiter built on ulule/limiter.
type Fixed struct {
	L *limiter.Limiter
}

// ParseRate parses a rate such as "5-M" (five per minute).
func ParseRate(rate string) (limiter.Rate, error) {
	r, err := limiter.NewRateFromFormatted(strings.TrimSpace(rate))
	if err != nil {
		return limiter.Rate{}, fmt.Errorf("ratelimit: parse rate %q: %w", rate, err)
	}
	return r, nil
}

// NewFixed binds a formatted rate to store.
func NewFixed(rate string, store limiter.Store) (*Fixed, error) {
	r, err := ParseRate(rate)
	if err != nil {
		return nil, err
	}
	return &Fixed{L: limiter.New(store, r)}, nil
}

// Allow implements Limiter.
func (f *Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	lc, err := f.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lc.Reached,
		Limit:     lc.Limit,
		Remaining: lc.Remaining,
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}
