package producerapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/WillamesCampos/notification-producer-api/internal/api/middleware"
)

// NewRouter wires the producer API surface. redisClient is optional; when
// present the POST route honors Idempotency-Key headers.
func NewRouter(h *Handlers, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "notification-producer-api",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if redisClient != nil {
			r.With(middleware.Idempotency(redisClient)).Post("/events", h.CreateEvent)
		} else {
			r.Post("/events", h.CreateEvent)
		}
		r.Get("/events/types", h.ListEventTypes)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
