// AngelaMos | 2026
// collector.go

package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Snapshot holds row counts the Collector publishes as gauges.
type Snapshot struct {
	ArticlesByTier      map[string]int `json:"articles_by_tier"`
	SubscribersByStatus map[bool]int   `json:"-"`
	ActiveByTier        map[string]int `json:"active_subscriptions_by_tier"`
}

type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Collector polls a Source and refreshes the content gauges.
type Collector struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewCollector(source Source, interval time.Duration, logger *slog.Logger) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		source:   source,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins collecting in the background. Stop must be called to end it.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.Collect(ctx)

		for {
			select {
			case <-ticker.C:
				c.Collect(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends collection and waits for the loop to exit.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

// Collect refreshes every gauge once.
func (c *Collector) Collect(ctx context.Context) {
	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		c.logger.Warn("metrics collection failed", "error", err)
		return
	}

	ArticlesTotal.Reset()
	for t, n := range snap.ArticlesByTier {
		ArticlesTotal.WithLabelValues(t).Set(float64(n))
	}

	SubscribersTotal.Reset()
	for confirmed, n := range snap.SubscribersByStatus {
		SubscribersTotal.WithLabelValues(strconv.FormatBool(confirmed)).Set(float64(n))
	}

	ActiveSubscriptionsTotal.Reset()
	for t, n := range snap.ActiveByTier {
		ActiveSubscriptionsTotal.WithLabelValues(t).Set(float64(n))
	}
}
