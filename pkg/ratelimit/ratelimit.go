// Package ratelimit meters API calls per user over a sliding one-minute
// window held in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Request costs. A batch run reconciles every configuration of every user,
// so it is charged as many ordinary requests.
const (
	RequestCost = 1
	BatchCost   = 10
)

type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, requestsPerMinute int) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(requestsPerMinute),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func userKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

// Allow charges cost units against the user's budget. A cost of one is the
// common case and skips the weighted path.
func (l *Limiter) Allow(ctx context.Context, userID int64, cost int) (bool, error) {
	var (
		res *extratelimit.Result
		err error
	)
	if cost <= RequestCost {
		res, err = l.store.Allow(ctx, userKey(userID))
	} else {
		res, err = l.store.AllowN(ctx, userKey(userID), cost)
	}
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
