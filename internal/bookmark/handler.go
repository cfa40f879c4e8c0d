// AngelaMos | 2026
// handler.go

package bookmark

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type stateResponse struct {
	ArticleID  string `json:"article_id"`
	Bookmarked bool   `json:"bookmarked"`
}

type savedResponse struct {
	article.ArticleResponse
	BookmarkedAt time.Time `json:"bookmarked_at"`
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/account/bookmarks", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Get("/{articleID}", h.Status)
		r.Post("/{articleID}/toggle", h.Toggle)
	})
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	bookmarked, err := h.service.Toggle(
		r.Context(),
		middleware.GetUserID(r.Context()),
		articleID,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, stateResponse{ArticleID: articleID, Bookmarked: bookmarked})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	bookmarked, err := h.service.IsBookmarked(
		r.Context(),
		middleware.GetUserID(r.Context()),
		articleID,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, stateResponse{ArticleID: articleID, Bookmarked: bookmarked})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := parseIntQuery(r, "page", 1)
	pageSize := parseIntQuery(r, "page_size", defaultPageSize)

	saved, total, err := h.service.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		page,
		pageSize,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	readerTier := middleware.GetUserTier(r.Context())
	out := make([]savedResponse, 0, len(saved))
	for i := range saved {
		out = append(out, savedResponse{
			ArticleResponse: article.ToArticleResponse(&saved[i].Article, readerTier),
			BookmarkedAt:    saved[i].BookmarkedAt,
		})
	}

	page, pageSize = normalizePage(page, pageSize)
	core.Paginated(w, out, page, pageSize, total)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "sign in to manage bookmarks")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "newsletter")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
