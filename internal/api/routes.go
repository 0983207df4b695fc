package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouteOptions tunes the router.
type RouteOptions struct {
	// AllowedOrigins for CORS. Empty means same-origin only.
	AllowedOrigins []string
	// AccessLog enables chi's request logger.
	AccessLog bool
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
}

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", hc.HandleLiveness)
	r.Get("/healthz/ready", hc.HandleReadiness)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.Subscribe)
		r.Get("/confirm", h.Confirm)
	})

	r.Post("/newsletters", h.PublishNewsletter)

	return r
}
