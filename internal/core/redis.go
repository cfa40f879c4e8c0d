// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wealthsupernova/supernova/internal/config"
)

const (
	redisPoolTimeout = 30 * time.Second
	redisIdleTimeout = 5 * time.Minute
)

// Redis backs the rate limiters, the access token blacklist and the
// dispatch lock.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = redisPoolTimeout
	opts.ConnMaxIdleTime = redisIdleTimeout

	r := &Redis{Client: redis.NewClient(opts)}

	if err := waitReady(ctx, "redis", r.Ping); err != nil {
		_ = r.Client.Close() //nolint:errcheck // already failing
		return nil, err
	}

	return r, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
