// AngelaMos | 2026
// repository.go

package admin

import (
	"context"
	"fmt"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/metrics"
)

// Repository counts content and audience rows. It is the metrics.Source
// behind the gauges and the admin content stats.
type Repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) *Repository {
	return &Repository{db: db}
}

type tierCount struct {
	Tier  string `db:"tier"`
	Count int    `db:"count"`
}

type confirmedCount struct {
	Confirmed bool `db:"confirmed"`
	Count     int  `db:"count"`
}

func (r *Repository) Snapshot(ctx context.Context) (*metrics.Snapshot, error) {
	var articles []tierCount
	err := r.db.SelectContext(ctx, &articles, `
		SELECT min_tier AS tier, COUNT(*) AS count
		FROM newsletter_articles
		WHERE publish_date <= NOW()
		GROUP BY min_tier`)
	if err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	var subscribers []confirmedCount
	err = r.db.SelectContext(ctx, &subscribers, `
		SELECT is_confirmed AS confirmed, COUNT(*) AS count
		FROM newsletter_subscribers
		GROUP BY is_confirmed`)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}

	var active []tierCount
	err = r.db.SelectContext(ctx, &active, `
		SELECT s.tier, COUNT(*) AS count
		FROM user_subscriptions s
		JOIN accounts a ON a.id = s.user_id AND a.deleted_at IS NULL
		WHERE s.payment_status = 'active'
		  AND (s.subscription_end_date IS NULL OR s.subscription_end_date > NOW())
		GROUP BY s.tier`)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}

	snap := &metrics.Snapshot{
		ArticlesByTier:      make(map[string]int, len(articles)),
		SubscribersByStatus: make(map[bool]int, len(subscribers)),
		ActiveByTier:        make(map[string]int, len(active)),
	}
	for _, c := range articles {
		snap.ArticlesByTier[c.Tier] = c.Count
	}
	for _, c := range subscribers {
		snap.SubscribersByStatus[c.Confirmed] = c.Count
	}
	for _, c := range active {
		snap.ActiveByTier[c.Tier] = c.Count
	}

	return snap, nil
}

var _ metrics.Source = (*Repository)(nil)
