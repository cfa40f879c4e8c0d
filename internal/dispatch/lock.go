// AngelaMos | 2026
// lock.go

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wealthsupernova/supernova/internal/core"
)

// Locker guards a newsletter against two batch dispatches at once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

const lockKeyPrefix = "dispatch:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another dispatch is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lock or fails with ErrInProgress. The returned func
// releases it.
func (l *RedisLocker) Acquire(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (func(context.Context) error, error) {
	token, err := core.GenerateSecureToken(16)
	if err != nil {
		return nil, err
	}

	fullKey := lockKeyPrefix + key
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("newsletter %s: %w", key, ErrInProgress)
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release dispatch lock: %w", err)
		}
		return nil
	}, nil
}
