// AngelaMos | 2026
// handler.go

package account

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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/account", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetMe)
		r.Put("/", h.UpdateMe)
		r.Delete("/", h.DeleteMe)

		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.UpdatePreferences)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListAccounts)
		r.Get("/{accountID}", h.GetAccount)
		r.Put("/{accountID}/subscription", h.SetSubscription)
		r.Put("/{accountID}/role", h.SetRole)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetMe(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.UpdateMe(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMe(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPreferences(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToPreferencesResponse(p))
}

func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.UpdatePreferences(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToPreferencesResponse(p))
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	params := ListAccountsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}
	params.Normalize()

	accounts, total, err := h.service.ListAccounts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToAccountResponseList(accounts), params.Page, params.PageSize, total)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	var req SetSubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.SetSubscription(r.Context(), chi.URLParam(r, "accountID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.SetRole(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "accountID"),
		req.Role,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToProfileResponse(p))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "insufficient permissions")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
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
