// AngelaMos | 2026
// repository.go

package bookmark

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/core"
)

// Saved is an article on a user's reading list.
type Saved struct {
	article.Article
	BookmarkedAt time.Time `db:"bookmarked_at"`
}

type Repository interface {
	Toggle(ctx context.Context, userID, articleID string) (bool, error)
	Exists(ctx context.Context, userID, articleID string) (bool, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Saved, int, error)
}

type repository struct {
	db core.TxDB
}

func NewRepository(db core.TxDB) Repository {
	return &repository{db: db}
}

// Toggle flips the (user, article) bookmark and reports the new state.
// Concurrent toggles of the same pair are serialised on a transaction
// scoped advisory lock so each one observes the previous result.
func (r *repository) Toggle(
	ctx context.Context,
	userID, articleID string,
) (bool, error) {
	var bookmarked bool

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
			userID, articleID,
		); err != nil {
			return fmt.Errorf("lock bookmark: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM user_bookmarks
			WHERE user_id = $1 AND article_id = $2`,
			userID, articleID,
		)
		if err != nil {
			if core.IsInvalidTextError(err) {
				return fmt.Errorf("delete bookmark: %w", core.ErrNotFound)
			}
			return fmt.Errorf("delete bookmark: %w", err)
		}

		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete bookmark: %w", err)
		}
		if removed > 0 {
			bookmarked = false
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_bookmarks (id, user_id, article_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, article_id) DO NOTHING`,
			uuid.New().String(), userID, articleID,
		); err != nil {
			if core.IsForeignKeyError(err) {
				return fmt.Errorf("insert bookmark: %w", core.ErrNotFound)
			}
			return fmt.Errorf("insert bookmark: %w", err)
		}

		bookmarked = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return bookmarked, nil
}

func (r *repository) Exists(
	ctx context.Context,
	userID, articleID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM user_bookmarks
			WHERE user_id = $1 AND article_id = $2
		)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, userID, articleID)
	if core.IsInvalidTextError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}

	return exists, nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]Saved, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM user_bookmarks WHERE user_id = $1`,
		userID,
	); err != nil {
		return nil, 0, fmt.Errorf("count bookmarks: %w", err)
	}

	query := `
		SELECT a.id, a.slug, a.title, a.summary, a.content, a.author,
		       a.publish_date, a.min_tier, a.is_featured, a.read_time_minutes,
		       a.tags, a.category, a.feature_image_url, a.created_at, a.updated_at,
		       b.created_at AS bookmarked_at
		FROM user_bookmarks b
		JOIN newsletter_articles a ON a.id = b.article_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3`

	var saved []Saved
	if err := r.db.SelectContext(ctx, &saved, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list bookmarks: %w", err)
	}

	return saved, total, nil
}
