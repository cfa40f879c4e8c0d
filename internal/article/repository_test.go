// AngelaMos | 2026
// repository_test.go

package article

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

func newRepoWithMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var articleCols = []string{
	"id", "slug", "title", "summary", "content", "author", "publish_date",
	"min_tier", "is_featured", "read_time_minutes", "tags", "category",
	"feature_image_url", "created_at", "updated_at",
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+newsletter_articles.*RETURNING\s+created_at,\s*updated_at`).
		WithArgs(
			"a-1", "rates-outlook", "Rates", "summary", "<p>body</p>", "Ana",
			sqlmock.AnyArg(), "blaze", false, 4, sqlmock.AnyArg(),
			nil, nil,
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	a := &Article{
		ID:              "a-1",
		Slug:            "rates-outlook",
		Title:           "Rates",
		Summary:         "summary",
		Content:         "<p>body</p>",
		Author:          "Ana",
		PublishDate:     now,
		MinTier:         tier.Blaze,
		ReadTimeMinutes: 4,
		Tags:            []string{"macro", "rates"},
	}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, now, a.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateSlug(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+newsletter_articles`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &Article{
		ID: "a-2", Slug: "dup", MinTier: tier.Free, ReadTimeMinutes: 1, Tags: []string{},
	})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestGetBySlug_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+newsletter_articles\s+WHERE\s+slug\s*=\s*\$1`).
		WithArgs("rates-outlook").
		WillReturnRows(sqlmock.NewRows(articleCols).AddRow(
			"a-1", "rates-outlook", "Rates", "summary", "<p>body</p>", "Ana", now,
			"premium", true, 4, "{macro,rates}", "markets", nil, now, now,
		))

	a, err := repo.GetBySlug(context.Background(), "rates-outlook")
	require.NoError(t, err)
	assert.Equal(t, tier.Premium, a.MinTier)
	assert.Equal(t, []string{"macro", "rates"}, []string(a.Tags))
	require.NotNil(t, a.Category)
	assert.Equal(t, "markets", *a.Category)
	assert.Nil(t, a.FeatureImageURL)
}

func TestGetBySlug_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+newsletter_articles`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySlug(context.Background(), "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetByID_MalformedIDIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM newsletter_articles\s+WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_AppliesFilters(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	featured := true

	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM newsletter_articles WHERE TRUE AND category = \$1 AND \$2 = ANY\(tags\) AND is_featured = \$3`).
		WithArgs("markets", "crypto", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`(?s)ORDER BY publish_date DESC, id\s+LIMIT \$4 OFFSET \$5`).
		WithArgs("markets", "crypto", true, 10, 10).
		WillReturnRows(sqlmock.NewRows(articleCols))

	articles, total, err := repo.List(context.Background(), ListArticlesParams{
		Page:     2,
		PageSize: 10,
		Category: "markets",
		Tag:      "crypto",
		Featured: &featured,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, articles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEngagement(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	readAt := time.Now().UTC()

	mock.ExpectQuery(`(?s)INSERT INTO article_engagement.*ON CONFLICT \(user_id, article_id\) DO UPDATE`).
		WithArgs("e-1", "u-1", "a-1", 60).
		WillReturnRows(sqlmock.NewRows([]string{"read_at"}).AddRow(readAt))

	e := &Engagement{ID: "e-1", UserID: "u-1", ArticleID: "a-1", ReadPercentage: 60}
	require.NoError(t, repo.UpsertEngagement(context.Background(), e))
	assert.Equal(t, readAt, e.ReadAt)
}

func TestUpsertEngagement_UnknownArticle(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO article_engagement`).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.UpsertEngagement(context.Background(), &Engagement{ID: "e", UserID: "u", ArticleID: "missing"})
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, errors.Is(err, core.ErrDuplicateKey))
}

func TestUpsertEngagement_MalformedArticleID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO article_engagement`).
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	err := repo.UpsertEngagement(context.Background(), &Engagement{ID: "e", UserID: "u", ArticleID: "nope"})
	require.ErrorIs(t, err, core.ErrNotFound)
}
