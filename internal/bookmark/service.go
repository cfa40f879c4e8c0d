// AngelaMos | 2026
// service.go

package bookmark

import (
	"context"
	"fmt"

	"github.com/wealthsupernova/supernova/internal/core"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Toggle saves or unsaves articleID for userID and returns whether it is now
// saved. Calling it twice restores the original state.
func (s *Service) Toggle(
	ctx context.Context,
	userID, articleID string,
) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("toggle bookmark: %w", core.ErrUnauthorized)
	}
	if articleID == "" {
		return false, fmt.Errorf("toggle bookmark: article id: %w", core.ErrInvalidInput)
	}

	return s.repo.Toggle(ctx, userID, articleID)
}

func (s *Service) IsBookmarked(
	ctx context.Context,
	userID, articleID string,
) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("check bookmark: %w", core.ErrUnauthorized)
	}

	return s.repo.Exists(ctx, userID, articleID)
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	page, pageSize int,
) ([]Saved, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("list bookmarks: %w", core.ErrUnauthorized)
	}
	page, pageSize = normalizePage(page, pageSize)

	return s.repo.List(ctx, userID, pageSize, (page-1)*pageSize)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
