// AngelaMos | 2026
// handler.go

package subscriber

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wealthsupernova/supernova/internal/core"
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

// RegisterRoutes mounts the public signup endpoints. limiter guards signup
// against scripted abuse.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/subscribers", func(r chi.Router) {
		r.With(limiter).Post("/", h.Signup)
		r.Get("/confirm", h.Confirm)
	})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Signup(r.Context(), req)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if resp.IsNewSubscriber {
		core.Created(w, resp)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := h.service.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "token is required")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "confirmation token")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, map[string]any{"id": id, "confirmed": true})
}
