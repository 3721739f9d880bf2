package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRequestTimeout = 90 * time.Second

// NewRouter mounts every route on a chi router. requestTimeout must outlast
// the generation timeout; zero uses defaultRequestTimeout.
func NewRouter(h *Handler, allowedOrigins []string, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", apiKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(h.AnswerOptions)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/predictions", func(r chi.Router) {
		r.Use(h.RequireStore)

		r.Get("/", h.GetPredictions)
		r.Put("/", h.VerifyPrediction)
		r.With(h.RequireAPIKey).Post("/", h.StorePrediction)

		r.Get("/analytics", h.GetAccuracyReport)
		r.Get("/{fixtureId}", h.GetFreshPrediction)
		r.With(h.RequireAPIKey).Post("/{fixtureId}/generate", h.GeneratePrediction)
	})

	r.With(h.RequireAPIKey).Post("/system/install", h.InstallDatabase)

	return r
}
