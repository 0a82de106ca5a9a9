package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter caps AI-backed requests per device per minute. Thin wrapper
// around github.com/vnmchuo/ratelimiter with a Redis window store.
type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, defaultRPM int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(defaultRPM)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func (l *Limiter) Allow(ctx context.Context, deviceID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:device:%s", deviceID)
	res, err := l.store.Allow(ctx, key)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *Limiter) Status(ctx context.Context, deviceID string) (*extratelimit.Result, error) {
	key := fmt.Sprintf("ratelimit:device:%s", deviceID)
	return l.store.Status(ctx, key)
}
