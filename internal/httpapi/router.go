package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"factcheck/backend/internal/config"
)

// NewRouter mounts the API. metricsHandler may be nil.
func NewRouter(cfg config.Config, h Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Type", "X-Check-ID", "X-Cache"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(h.RequireCaller)
		v1.Post("/factcheck", h.FactCheck)
		v1.Get("/checks", h.ListChecks)
		v1.Get("/checks/{id}", h.GetCheck)
		v1.Get("/sources", h.ListSources)
	})

	return r
}
