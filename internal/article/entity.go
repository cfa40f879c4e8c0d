// AngelaMos | 2026
// entity.go

package article

import (
	"time"

	"github.com/lib/pq"

	"github.com/wealthsupernova/supernova/internal/tier"
)

type Article struct {
	ID              string         `db:"id"`
	Slug            string         `db:"slug"`
	Title           string         `db:"title"`
	Summary         string         `db:"summary"`
	Content         string         `db:"content"`
	Author          string         `db:"author"`
	PublishDate     time.Time      `db:"publish_date"`
	MinTier         tier.Tier      `db:"min_tier"`
	IsFeatured      bool           `db:"is_featured"`
	ReadTimeMinutes int            `db:"read_time_minutes"`
	Tags            pq.StringArray `db:"tags"`
	Category        *string        `db:"category"`
	FeatureImageURL *string        `db:"feature_image_url"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (a *Article) ReadableBy(t tier.Tier) bool {
	return tier.CanAccess(a.MinTier, t)
}

type Engagement struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	ArticleID      string    `db:"article_id"`
	ReadPercentage int       `db:"read_percentage"`
	ReadAt         time.Time `db:"read_at"`
}
