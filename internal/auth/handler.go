// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

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
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.Me)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err, "invalid email or password")
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err, "")
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err, "")
		return
	}

	core.OK(w, resp)
}

// Logout revokes the given refresh token and blacklists the access token
// that authenticated the call.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, middleware.GetClaims(r.Context())); err != nil {
		writeError(w, err, "")
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LogoutAll(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err, "")
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req.CurrentPassword,
		req.NewPassword,
	)
	if err != nil {
		writeError(w, err, "current password is incorrect")
		return
	}

	core.NoContent(w)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err, "")
		return
	}

	core.OK(w, user)
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

// writeError maps service errors onto the response envelope. badCredentials
// is the message for ErrInvalidCredentials on the calling endpoint.
func writeError(w http.ResponseWriter, err error, badCredentials string) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.UnauthorizedError(badCredentials))
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrTokenReuse):
		core.JSONError(w, core.NewAppError(
			core.ErrTokenRevoked,
			"refresh token reuse detected, all sessions in this family were revoked",
			http.StatusUnauthorized,
			"TOKEN_REUSE_DETECTED",
		))
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "cannot revoke another user's token")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	default:
		core.InternalServerError(w, err)
	}
}
