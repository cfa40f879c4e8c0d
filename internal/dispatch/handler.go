// AngelaMos | 2026
// handler.go

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/functions", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/send-newsletter", h.Send)
	})
}

// Send answers in the function's own envelope: Response on success and
// ErrorResponse with a non-2xx status otherwise.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, core.FormatValidationError(err))
		return
	}

	// A client disconnect must not abandon a batch halfway.
	result, err := h.service.Dispatch(context.WithoutCancel(r.Context()), req)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("dispatch failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	core.JSON(w, http.StatusOK, Response{
		Success:        true,
		Message:        summarize(result),
		RecipientCount: result.Recipients,
		SentCount:      result.Sent,
	})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrNoRecipients):
		return http.StatusBadRequest, "no eligible recipients"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "newsletter or subscriber not found"
	case errors.Is(err, ErrInProgress):
		return http.StatusConflict, "a dispatch for this newsletter is already running"
	default:
		return http.StatusInternalServerError, "dispatch failed, try again"
	}
}

func summarize(r *Result) string {
	switch r.Mode {
	case TypeWelcome:
		if r.Sent == 0 {
			return "Welcome email could not be delivered"
		}
		return "Welcome email sent"
	case TypeTest:
		if r.Sent == 0 {
			return "Test email could not be delivered"
		}
		return "Test email sent"
	default:
		return fmt.Sprintf("Newsletter sent to %d of %d recipients", r.Sent, r.Recipients)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	core.JSON(w, status, ErrorResponse{Error: msg})
}
