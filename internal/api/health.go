package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careloop/provider-availability/internal/db"
)

const dependencyPingTimeout = time.Second

type HealthHandler struct {
	pgPool  *pgxpool.Pool
	redis   *redis.Client
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		redis:   redis,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version,omitempty"`
	Env           string            `json:"env,omitempty"`
	SchemaVersion int64             `json:"schema_version,omitempty"`
	Dependencies  map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness pings both stores. Postgres down means the service cannot work
// at all; Redis down only degrades it, since reads still succeed but writes
// that need locks will fail.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadinessResponse{
		Status:       "ok",
		Version:      h.version,
		Env:          h.env,
		Dependencies: make(map[string]string),
	}

	if err := h.pingPostgres(ctx); err != nil {
		resp.Dependencies["postgres"] = "down"
		resp.Status = "error"
	} else {
		resp.Dependencies["postgres"] = "ok"
		if v, err := db.MigrationVersion(ctx, h.pgPool); err == nil {
			resp.SchemaVersion = v
		}
	}

	if err := h.pingRedis(ctx); err != nil {
		resp.Dependencies["redis"] = "down"
		if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	} else {
		resp.Dependencies["redis"] = "ok"
	}

	httpStatus := http.StatusOK
	if resp.Status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, resp)
}

func (h *HealthHandler) pingPostgres(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
	defer cancel()
	return h.pgPool.Ping(pingCtx)
}

func (h *HealthHandler) pingRedis(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
	defer cancel()
	return h.redis.Ping(pingCtx).Err()
}
