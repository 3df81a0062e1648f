package api

import (
	"net/http"
	"strconv"

	"github.com/neexbeast/destinasi/internal/wishlist"
)

type legacyWishlistDestination struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Price    string `json:"price"`
	Image    string `json:"image"`
}

type legacyWishlistItem struct {
	ID        string                    `json:"id"`
	Destinasi legacyWishlistDestination `json:"destinasi"`
}

type toggleRequest struct {
	DestinasiID string `json:"destinasi_id"`
	UserID      string `json:"user_id,omitempty"`
}

type toggleResponse struct {
	Success        bool            `json:"success"`
	Action         wishlist.Action `json:"action"`
	Message        string          `json:"message"`
	AlreadyPresent bool            `json:"already_present,omitempty"`
	Present        bool            `json:"present"`
}

// resolveUser returns the session user. A user_id supplied by the client is
// accepted only when it names that same user.
func resolveUser(w http.ResponseWriter, r *http.Request, claimed string) (string, bool) {
	sess := SessionFromContext(r.Context())
	if claimed != "" && claimed != sess.UserID {
		writeError(w, http.StatusForbidden, "user_id does not match the session")
		return "", false
	}
	return sess.UserID, true
}

// ListWishlist handles GET /api/wishlist[?user_id=].
func (h *Handlers) ListWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveUser(w, r, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}

	items, err := h.wishlist.List(r.Context(), userID)
	if err != nil {
		h.writeWishlistError(w, err)
		return
	}

	out := make([]legacyWishlistItem, 0, len(items))
	for _, it := range items {
		out = append(out, legacyWishlistItem{
			ID: it.ID,
			Destinasi: legacyWishlistDestination{
				ID:       it.DestinationID,
				Title:    it.Destination.Name,
				Location: it.Destination.Location,
				Price:    strconv.FormatInt(it.Destination.Price, 10),
				Image:    it.Destination.Image(),
			},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ToggleWishlist handles POST /api/wishlist.
func (h *Handlers) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	var in toggleRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	userID, ok := resolveUser(w, r, in.UserID)
	if !ok {
		return
	}
	if in.DestinasiID == "" {
		writeError(w, http.StatusBadRequest, "Missing destinasi_id")
		return
	}

	res, err := h.wishlist.Toggle(r.Context(), userID, in.DestinasiID)
	if err != nil {
		h.writeWishlistError(w, err)
		return
	}

	msg := "Ditambahkan ke wishlist"
	if res.Action == wishlist.ActionRemoved {
		msg = "Dihapus dari wishlist"
	}
	writeJSON(w, http.StatusOK, toggleResponse{
		Success:        true,
		Action:         res.Action,
		Message:        msg,
		AlreadyPresent: res.AlreadyPresent,
		Present:        res.Present,
	})
}

// DeleteWishlist handles DELETE /api/wishlist?destination_id=.
func (h *Handlers) DeleteWishlist(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	destinationID := r.URL.Query().Get("destination_id")
	if destinationID == "" {
		writeError(w, http.StatusBadRequest, "Missing destination_id")
		return
	}

	removed, err := h.wishlist.Remove(r.Context(), sess.UserID, destinationID)
	if err != nil {
		h.writeWishlistError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"removed": removed,
		"message": "Berhasil dihapus dari wishlist",
	})
}
