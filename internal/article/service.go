// AngelaMos | 2026
// service.go

package article

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const defaultReadPercentage = 100

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Insert validates req and writes one article row. A slug already in use
// surfaces as core.ErrDuplicateKey.
func (s *Service) Insert(
	ctx context.Context,
	req CreateArticleRequest,
) (*Article, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf(
			"insert article: slug %q must be lowercase words joined by hyphens: %w",
			req.Slug,
			core.ErrInvalidInput,
		)
	}

	minTier, err := tier.ParseOrDefault(req.MinTier, tier.Free)
	if err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}

	publishDate, err := parsePublishDate(req.PublishDate)
	if err != nil {
		return nil, fmt.Errorf("insert article: %s: %w", err, core.ErrInvalidInput)
	}

	a := &Article{
		ID:              uuid.New().String(),
		Slug:            slug,
		Title:           strings.TrimSpace(req.Title),
		Summary:         strings.TrimSpace(req.Summary),
		Content:         req.Content,
		Author:          strings.TrimSpace(req.Author),
		PublishDate:     publishDate,
		MinTier:         minTier,
		IsFeatured:      req.IsFeatured,
		ReadTimeMinutes: req.ReadTimeMinutes,
		Tags:            []string(normalizeTags(req.Tags)),
		Category:        optional(req.Category),
		FeatureImageURL: optional(req.FeatureImageURL),
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("article inserted",
		"article_id", a.ID,
		"slug", a.Slug,
		"min_tier", a.MinTier,
	)

	return a, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Article, error) {
	return s.repo.GetByID(ctx, id)
}

// View loads the article at slug for a reader. When the reader is signed in
// and allowed to read it, the view is recorded as engagement. Engagement
// failures never fail the view.
func (s *Service) View(
	ctx context.Context,
	slug, userID string,
	readerTier tier.Tier,
) (*Article, error) {
	a, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if userID != "" && a.ReadableBy(readerTier) {
		e := &Engagement{
			ID:             uuid.New().String(),
			UserID:         userID,
			ArticleID:      a.ID,
			ReadPercentage: defaultReadPercentage,
		}
		if err := s.repo.UpsertEngagement(ctx, e); err != nil {
			s.logger.Warn("failed to record article view",
				"article_id", a.ID,
				"user_id", userID,
				"error", err,
			)
		}
	}

	return a, nil
}

func (s *Service) List(
	ctx context.Context,
	params ListArticlesParams,
) ([]Article, int, error) {
	return s.repo.List(ctx, params)
}

// RecordEngagement stores an explicit read percentage for the caller. Locked
// articles cannot be marked as read.
func (s *Service) RecordEngagement(
	ctx context.Context,
	userID, articleID string,
	readerTier tier.Tier,
	req EngagementRequest,
) (*Engagement, error) {
	if userID == "" {
		return nil, fmt.Errorf("record engagement: %w", core.ErrUnauthorized)
	}

	a, err := s.repo.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}

	if !a.ReadableBy(readerTier) {
		return nil, fmt.Errorf("record engagement: %w", core.ErrForbidden)
	}

	pct := defaultReadPercentage
	if req.ReadPercentage != nil {
		pct = *req.ReadPercentage
	}

	e := &Engagement{
		ID:             uuid.New().String(),
		UserID:         userID,
		ArticleID:      a.ID,
		ReadPercentage: pct,
	}
	if err := s.repo.UpsertEngagement(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
