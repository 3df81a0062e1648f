package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/destinasi/internal/admin"
	"github.com/neexbeast/destinasi/internal/destination"
)

func (h *Handlers) writeAdminError(w http.ResponseWriter, op, id string, err error) {
	var verr *admin.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid destination", "fields": verr.Fields})
	case errors.Is(err, destination.ErrNotFound):
		writeError(w, http.StatusNotFound, "destination not found")
	case errors.Is(err, destination.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	default:
		h.log.Error(op+" failed", "destination_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// CreateDestination handles POST /api/admin/destinations.
func (h *Handlers) CreateDestination(w http.ResponseWriter, r *http.Request) {
	var in admin.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	d, err := h.admin.Create(r.Context(), in)
	if err != nil {
		h.writeAdminError(w, "create destination", "", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDestination handles PUT /api/admin/destinations/{id}.
func (h *Handlers) UpdateDestination(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in admin.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	d, err := h.admin.Update(r.Context(), id, in)
	if err != nil {
		h.writeAdminError(w, "update destination", id, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDestination handles DELETE /api/admin/destinations/{id}. Wishlist
// entries referencing the destination are removed with it.
func (h *Handlers) DeleteDestination(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := SessionFromContext(r.Context())

	removed, err := h.admin.Delete(r.Context(), id, sess.UserID)
	if err != nil {
		h.writeAdminError(w, "delete destination", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "wishlist_removed": removed})
}

// UploadImage handles POST /api/admin/uploads with the file in the
// multipart field "image".
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	// Multipart framing needs headroom over the file limit itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+64<<10)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	f, hdr, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer f.Close()

	url, err := h.admin.UploadImage(r.Context(), hdr.Filename, f)
	switch {
	case errors.Is(err, admin.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
	case errors.Is(err, admin.ErrNotImage), errors.Is(err, admin.ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, "file must be an image")
	case err != nil:
		h.log.Error("image upload failed", "filename", hdr.Filename, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	}
}

// Stats handles GET /api/admin/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.admin.Stats(r.Context())
	if err != nil {
		h.log.Error("admin stats failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
