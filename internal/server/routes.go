package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luzhipeng728/sora/internal/auth"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, authService *auth.Service, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/me", h.Me)
	})

	r.Route("/videos", func(r chi.Router) {
		r.Use(AuthMiddleware(authService))

		r.Post("/", h.CreateVideo)
		r.Get("/", h.ListVideos)
		r.Get("/jobs", h.ActiveJobs)
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Get("/{videoID}", h.GetVideo)
	})

	return r
}
