package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const userCacheTTL = 5 * time.Minute

var ErrCacheMiss = errors.New("cache miss")

// UserCache sits in front of Store so authenticated requests skip the
// database.
type UserCache interface {
	Get(ctx context.Context, sub string) (*User, error)
	Set(ctx context.Context, u *User) error
}

type RedisCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: userCacheTTL}
}

func cacheKey(sub string) string {
	return "auth:user:" + sub
}

func (c *RedisCache) Get(ctx context.Context, sub string) (*User, error) {
	var u User
	err := c.rdb.Get(ctx, cacheKey(sub)).Scan(&u)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *RedisCache) Set(ctx context.Context, u *User) error {
	return c.rdb.Set(ctx, cacheKey(u.Sub), u, c.ttl).Err()
}

// MemoryCache is used by the CLI and tests where Redis is not available.
type MemoryCache struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{users: make(map[string]User)}
}

func (c *MemoryCache) Get(_ context.Context, sub string) (*User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[sub]
	if !ok {
		return nil, ErrCacheMiss
	}
	return &u, nil
}

func (c *MemoryCache) Set(_ context.Context, u *User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.Sub] = *u
	return nil
}
