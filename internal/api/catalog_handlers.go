package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/destinasi/internal/catalog"
	"github.com/neexbeast/destinasi/internal/destination"
	"github.com/neexbeast/destinasi/internal/wishlist"
)

// legacyDestination is the shape served by GET /api/destinasi.
type legacyDestination struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Location    string               `json:"location"`
	Price       int64                `json:"price"`
	Description string               `json:"description"`
	Image       string               `json:"image"`
	Tag         destination.Category `json:"tag"`
	Rating      float64              `json:"rating"`
}

// LegacyDestinations handles GET /api/destinasi.
func (h *Handlers) LegacyDestinations(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context(), catalog.Query{})
	if err != nil {
		h.log.Error("list destinations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch destinations")
		return
	}

	out := make([]legacyDestination, 0, len(list))
	for _, d := range list {
		out = append(out, legacyDestination{
			ID:          d.ID,
			Title:       d.Name,
			Location:    d.Location,
			Price:       d.Price,
			Description: d.Description,
			Image:       d.Image(),
			Tag:         d.Category,
			Rating:      d.Rating,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListDestinations handles GET /api/destinations?q=&category=. Signed-in
// requests get wishlist badges; a failed membership read drops the badges
// instead of failing the listing.
func (h *Handlers) ListDestinations(w http.ResponseWriter, r *http.Request) {
	q := catalog.Query{Search: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("category"); raw != "" {
		cat, ok := destination.ParseCategory(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		q.Category = cat
	}

	list, err := h.catalog.List(r.Context(), q)
	if err != nil {
		h.log.Error("list destinations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var membership []string
	if sess := SessionFromContext(r.Context()); sess != nil {
		membership, err = h.wishlist.Membership(r.Context(), sess.UserID)
		if err != nil {
			h.log.Warn("membership for badges failed", "user_id", sess.UserID, "kind", wishlist.KindOf(err), "err", err)
			membership = nil
		}
	}

	writeJSON(w, http.StatusOK, catalog.Badges(list, membership))
}

// GetDestination handles GET /api/destinations/{id}.
func (h *Handlers) GetDestination(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var userID string
	if sess := SessionFromContext(r.Context()); sess != nil {
		userID = sess.UserID
	}

	d, err := h.catalog.Detail(r.Context(), id, userID)
	switch {
	case errors.Is(err, catalog.ErrDestinationNotFound):
		writeError(w, http.StatusNotFound, "destination not found")
	case err != nil:
		h.log.Error("destination detail failed", "destination_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

// ListReviews handles GET /api/destinations/{id}/reviews.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reviews, err := h.catalog.Reviews(r.Context(), id)
	if err != nil {
		h.log.Error("list reviews failed", "destination_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if reviews == nil {
		reviews = []destination.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// CreateReview handles POST /api/destinations/{id}/reviews.
func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := SessionFromContext(r.Context())

	var in catalog.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	rv, err := h.catalog.AddReview(r.Context(), sess.UserID, id, in)
	switch {
	case errors.Is(err, catalog.ErrInvalidReview):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrDestinationNotFound):
		writeError(w, http.StatusNotFound, "destination not found")
	case err != nil:
		h.log.Error("create review failed", "destination_id", id, "user_id", sess.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusCreated, rv)
	}
}
