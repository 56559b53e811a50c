package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware)
	r.Use(MetricsMiddleware)

	// Health and operational endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	svc := cfg.Service

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Route("/availabilities", func(r chi.Router) {
				r.Post("/", createAvailabilityHandler(svc))
				r.Get("/", listAvailabilitiesHandler(svc))
				r.Get("/search", searchAvailabilitiesHandler(svc))
				r.Get("/stats", providerStatisticsHandler(svc))
				r.Get("/{definitionID}", getAvailabilityHandler(svc))
				r.Put("/{definitionID}", updateAvailabilityHandler(svc))
				r.Delete("/{definitionID}", deleteAvailabilityHandler(svc))
			})
			r.Get("/slots", listSlotsHandler(svc))
		})

		r.Route("/slots/{slotID}", func(r chi.Router) {
			r.Get("/", getSlotHandler(svc))
			r.Post("/book", bookSlotHandler(svc))
			r.Post("/cancel", cancelSlotHandler(svc))
			r.Post("/confirm", confirmSlotHandler(svc))
			r.Post("/check-in", checkInSlotHandler(svc))
			r.Post("/complete", completeSlotHandler(svc))
			r.Post("/no-show", noShowSlotHandler(svc))
			r.Post("/block", blockSlotHandler(svc))
			r.Post("/unblock", unblockSlotHandler(svc))
		})
	})

	return r
}
