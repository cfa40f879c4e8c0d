// AngelaMos | 2026
// handler.go

package article

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts the archive. Reads accept anonymous callers, who are
// treated as free tier.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	optionalAuth, authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)

		r.Get("/newsletters", h.List)
		r.Get("/newsletters/{slug}", h.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/articles/{articleID}/engagement", h.RecordEngagement)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/newsletters", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.Insert)
		r.Get("/{articleID}", h.GetByID)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListArticlesParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 12),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
	}
	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			core.BadRequest(w, "featured must be true or false")
			return
		}
		params.Featured = &featured
	}
	params.Normalize()

	articles, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToArticleResponseList(articles, middleware.GetUserTier(r.Context())),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	readerTier := middleware.GetUserTier(r.Context())

	a, err := h.service.View(
		r.Context(),
		slug,
		middleware.GetUserID(r.Context()),
		readerTier,
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "newsletter")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToArticleResponse(a, readerTier))
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetByID(r.Context(), chi.URLParam(r, "articleID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "newsletter")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToArticleResponse(a, a.MinTier))
}

func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	a, err := h.service.Insert(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, err.Error())
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("slug"))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, ToArticleResponse(a, a.MinTier))
}

func (h *Handler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req EngagementRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	e, err := h.service.RecordEngagement(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "articleID"),
		middleware.GetUserTier(r.Context()),
		req,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnauthorized):
			core.Unauthorized(w, "authentication required")
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "upgrade required to read this newsletter")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "newsletter")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, map[string]any{
		"article_id":      e.ArticleID,
		"read_percentage": e.ReadPercentage,
		"read_at":         e.ReadAt,
	})
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
