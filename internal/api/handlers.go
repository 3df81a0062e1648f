package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/neexbeast/destinasi/internal/wishlist"
)

const maxBodyBytes = 1 << 20

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	sessions  Sessions
	catalog   Catalog
	wishlist  Wishlist
	profiles  Profiles
	admin     Admin
	maxUpload int64
	log       *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies. maxUpload
// bounds the multipart body of image uploads.
func NewHandlers(sessions Sessions, cat Catalog, wl Wishlist, profiles Profiles, adm Admin, maxUpload int64, log *slog.Logger) *Handlers {
	return &Handlers{
		sessions:  sessions,
		catalog:   cat,
		wishlist:  wl,
		profiles:  profiles,
		admin:     adm,
		maxUpload: maxUpload,
		log:       log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body of at most maxBodyBytes into dst. It writes a
// 400 response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// wishlistStatus maps a wishlist error kind to an HTTP status.
func wishlistStatus(k wishlist.Kind) int {
	switch k {
	case wishlist.KindAuthRequired:
		return http.StatusUnauthorized
	case wishlist.KindNotFound:
		return http.StatusNotFound
	case wishlist.KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// writeWishlistError writes err as {"error", "kind"} with the status of its
// kind.
func (h *Handlers) writeWishlistError(w http.ResponseWriter, err error) {
	var we *wishlist.Error
	if !errors.As(err, &we) {
		h.log.Error("wishlist operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if we.Kind == wishlist.KindTransient {
		h.log.Warn("wishlist operation failed", "op", we.Op, "destination_id", we.DestinationID, "err", err)
	}
	writeJSON(w, wishlistStatus(we.Kind), map[string]string{"error": we.Message(), "kind": string(we.Kind)})
}

// Pinger is satisfied by the database pool and Redis adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
func HealthHandlerFunc(db, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
