// AngelaMos | 2026
// repository.go

package article

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wealthsupernova/supernova/internal/core"
)

type Repository interface {
	Create(ctx context.Context, a *Article) error
	GetByID(ctx context.Context, id string) (*Article, error)
	GetBySlug(ctx context.Context, slug string) (*Article, error)
	List(ctx context.Context, params ListArticlesParams) ([]Article, int, error)
	UpsertEngagement(ctx context.Context, e *Engagement) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const articleColumns = `
		id, slug, title, summary, content, author, publish_date, min_tier,
		is_featured, read_time_minutes, tags, category, feature_image_url,
		created_at, updated_at`

func (r *repository) Create(ctx context.Context, a *Article) error {
	query := `
		INSERT INTO newsletter_articles (
			id, slug, title, summary, content, author, publish_date, min_tier,
			is_featured, read_time_minutes, tags, category, feature_image_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, a, query,
		a.ID,
		a.Slug,
		a.Title,
		a.Summary,
		a.Content,
		a.Author,
		a.PublishDate,
		a.MinTier,
		a.IsFeatured,
		a.ReadTimeMinutes,
		a.Tags,
		a.Category,
		a.FeatureImageURL,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create article: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create article: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Article, error) {
	query := `SELECT` + articleColumns + `
		FROM newsletter_articles
		WHERE id = $1`

	var a Article
	err := r.db.GetContext(ctx, &a, query, id)
	if core.IsNoMatch(err) {
		return nil, fmt.Errorf("get article: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}

	return &a, nil
}

func (r *repository) GetBySlug(
	ctx context.Context,
	slug string,
) (*Article, error) {
	query := `SELECT` + articleColumns + `
		FROM newsletter_articles
		WHERE slug = $1`

	var a Article
	err := r.db.GetContext(ctx, &a, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get article by slug: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article by slug: %w", err)
	}

	return &a, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListArticlesParams,
) ([]Article, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, params.Category)
		argIdx++
	}

	if params.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", argIdx))
		args = append(args, params.Tag)
		argIdx++
	}

	if params.Featured != nil {
		conditions = append(conditions, fmt.Sprintf("is_featured = $%d", argIdx))
		args = append(args, *params.Featured)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM newsletter_articles WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	query := fmt.Sprintf(`SELECT`+articleColumns+`
		FROM newsletter_articles
		WHERE %s
		ORDER BY publish_date DESC, id
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var articles []Article
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}

	return articles, total, nil
}

func (r *repository) UpsertEngagement(ctx context.Context, e *Engagement) error {
	query := `
		INSERT INTO article_engagement (id, user_id, article_id, read_percentage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, article_id) DO UPDATE
		SET read_percentage = EXCLUDED.read_percentage,
		    read_at = NOW(),
		    updated_at = NOW()
		RETURNING read_at`

	err := r.db.GetContext(ctx, &e.ReadAt, query,
		e.ID,
		e.UserID,
		e.ArticleID,
		e.ReadPercentage,
	)
	if err != nil {
		if core.IsForeignKeyError(err) || core.IsInvalidTextError(err) {
			return fmt.Errorf("record engagement: %w", core.ErrNotFound)
		}
		return fmt.Errorf("record engagement: %w", err)
	}

	return nil
}
