// AngelaMos | 2026
// dto.go

package article

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wealthsupernova/supernova/internal/tier"
)

type CreateArticleRequest struct {
	Title           string  `json:"title"             validate:"required,min=1,max=200"`
	Slug            string  `json:"slug"              validate:"required,min=1,max=200"`
	Summary         string  `json:"summary"           validate:"required,min=1,max=1000"`
	Content         string  `json:"content"           validate:"required"`
	Author          string  `json:"author"            validate:"required,min=1,max=100"`
	ReadTimeMinutes int     `json:"read_time_minutes" validate:"required,gt=0"`
	PublishDate     string  `json:"publish_date"      validate:"required"`
	Tags            TagList `json:"tags"`
	FeatureImageURL string  `json:"feature_image_url" validate:"omitempty,url,max=2048"`
	IsFeatured      bool    `json:"is_featured"`
	MinTier         string  `json:"min_tier"          validate:"omitempty,oneof=free blaze premium"`
	Category        string  `json:"category"          validate:"omitempty,max=100"`
}

// TagList accepts either a JSON array of strings or the admin form's
// comma-separated string. Entries are trimmed, empties dropped and
// duplicates removed keeping first occurrence.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*t = ParseTags(raw)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*t = normalizeTags(list)
	return nil
}

func ParseTags(raw string) TagList {
	return normalizeTags(strings.Split(raw, ","))
}

func normalizeTags(in []string) TagList {
	seen := make(map[string]struct{}, len(in))
	out := make(TagList, 0, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

var publishDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parsePublishDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("publish_date %q is not a date", s)
}

type EngagementRequest struct {
	ReadPercentage *int `json:"read_percentage" validate:"omitempty,min=0,max=100"`
}

type ArticleResponse struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Content         string    `json:"content,omitempty"`
	Author          string    `json:"author"`
	PublishDate     time.Time `json:"publish_date"`
	MinTier         tier.Tier `json:"min_tier"`
	IsFeatured      bool      `json:"is_featured"`
	ReadTimeMinutes int       `json:"read_time_minutes"`
	Tags            []string  `json:"tags"`
	Category        *string   `json:"category,omitempty"`
	FeatureImageURL *string   `json:"feature_image_url,omitempty"`
	CanAccess       bool      `json:"can_access"`
	UpgradeRequired bool      `json:"upgrade_required,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ListArticlesParams struct {
	Page     int
	PageSize int
	Category string
	Tag      string
	Featured *bool
}

func (p *ListArticlesParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 12
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListArticlesParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ToArticleResponse renders a for a reader on readerTier. Content is only
// included when the reader may access it.
func ToArticleResponse(a *Article, readerTier tier.Tier) ArticleResponse {
	canAccess := a.ReadableBy(readerTier)

	resp := ArticleResponse{
		ID:              a.ID,
		Slug:            a.Slug,
		Title:           a.Title,
		Summary:         a.Summary,
		Author:          a.Author,
		PublishDate:     a.PublishDate,
		MinTier:         a.MinTier,
		IsFeatured:      a.IsFeatured,
		ReadTimeMinutes: a.ReadTimeMinutes,
		Tags:            []string(a.Tags),
		Category:        a.Category,
		FeatureImageURL: a.FeatureImageURL,
		CanAccess:       canAccess,
		UpgradeRequired: !canAccess,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if canAccess {
		resp.Content = a.Content
	}

	return resp
}

func ToArticleResponseList(articles []Article, readerTier tier.Tier) []ArticleResponse {
	out := make([]ArticleResponse, 0, len(articles))
	for i := range articles {
		out = append(out, ToArticleResponse(&articles[i], readerTier))
	}
	return out
}
