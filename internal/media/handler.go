// AngelaMos | 2026
// handler.go

package media

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wealthsupernova/supernova/internal/core"
)

const (
	formField       = "file"
	multipartMemory = 1 << 20
	formOverhead    = 1 << 20
)

type Handler struct {
	uploader *Uploader
}

func NewHandler(uploader *Uploader) *Handler {
	return &Handler{uploader: uploader}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/uploads", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/images", h.UploadImage)
	})
}

// UploadImage accepts a multipart form with the image in the "file" field.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploader.MaxSize()+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.BadRequest(w, "file exceeds the upload size limit")
			return
		}
		core.BadRequest(w, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup
	}()

	file, header, err := r.FormFile(formField)
	if err != nil {
		core.BadRequest(w, "file is required")
		return
	}
	defer func() {
		_ = file.Close() //nolint:errcheck // read-only multipart file
	}()

	upload, err := h.uploader.Upload(r.Context(), header.Filename, header.Size, file)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, err.Error())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, upload)
}
