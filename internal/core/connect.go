// AngelaMos | 2026
// connect.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	pingTimeout     = 5 * time.Second
	connectAttempts = 5
	connectBase     = 250 * time.Millisecond
	connectCap      = 4 * time.Second
)

// waitReady pings until the dependency answers, backing off between
// attempts. Containers started together rarely come up in order.
func waitReady(ctx context.Context, name string, ping func(context.Context) error) error {
	backoff := retry.NewExponential(connectBase)
	backoff = retry.WithCappedDuration(connectCap, backoff)
	backoff = retry.WithMaxRetries(connectAttempts-1, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", name, err)
	}
	return nil
}
