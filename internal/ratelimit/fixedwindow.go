package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Strategy names accepted by New.
const (
	StrategySliding = "sliding"
	StrategyFixed   = "fixed"
)

// FixedWindow adapts a ulule limiter store to the Allower contract.
type FixedWindow struct {
	Store limiter.Store
}

// NewFixedWindow builds a fixed-window limiter backed by Redis.
func NewFixedWindow(client *redis.Client, prefix string) (FixedWindow, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return FixedWindow{}, err
	}
	return FixedWindow{Store: store}, nil
}

// Allow implements Allower.
func (f FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

// New returns the limiter for strategy, defaulting to the sliding window.
func New(strategy string, client *redis.Client, prefix string) (Allower, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyFixed:
		return NewFixedWindow(client, prefix)
	default:
		return SlidingWindow{Client: client, Prefix: prefix}, nil
	}
}
