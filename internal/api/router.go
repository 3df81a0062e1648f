package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// RouterConfig holds the router's non-handler dependencies. Sync serves the
// wishlist websocket at /api/sync and UploadDir is served at /uploads/.
type RouterConfig struct {
	Sync               http.Handler
	UploadDir          string
	RateLimitPerMinute int
	DB                 Pinger
	Redis              Pinger
}

// NewRouter builds the Chi router. Every request passes through the session
// middleware; wishlist, review and profile routes require a session and
// /api/admin requires an admin session.
func NewRouter(h *Handlers, cfg RouterConfig, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}

	r.Get("/api/v1/health", HealthHandlerFunc(cfg.DB, cfg.Redis, log))
	if cfg.Sync != nil {
		r.Handle("/api/sync", cfg.Sync)
	}
	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(WithSession(h.sessions, log))

		r.Get("/api/destinasi", h.LegacyDestinations)
		r.Get("/api/destinations", h.ListDestinations)
		r.Get("/api/destinations/{id}", h.GetDestination)
		r.Get("/api/destinations/{id}/reviews", h.ListReviews)

		r.Post("/api/auth/register", h.Register)
		r.Post("/api/auth/login", h.Login)
		r.Post("/api/auth/refresh", h.RefreshSession)
		r.Post("/api/auth/logout", h.Logout)
		r.Get("/api/auth/session", h.CurrentSession)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)
			r.Get("/api/wishlist", h.ListWishlist)
			r.Post("/api/wishlist", h.ToggleWishlist)
			r.Delete("/api/wishlist", h.DeleteWishlist)
			r.Post("/api/destinations/{id}/reviews", h.CreateReview)
			r.Get("/api/profile", h.GetProfile)
			r.Put("/api/profile", h.UpdateProfile)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/destinations", h.CreateDestination)
			r.Put("/destinations/{id}", h.UpdateDestination)
			r.Delete("/destinations/{id}", h.DeleteDestination)
			r.Post("/uploads", h.UploadImage)
			r.Get("/stats", h.Stats)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
