package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Health reports 503 when Postgres is down. A Redis outage only degrades
// caching, so it is reported but keeps the service healthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Redis: "ok"}
	status := http.StatusOK

	if err := h.db.Health(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Database = "error"
		status = http.StatusServiceUnavailable
	}
	if h.redis == nil {
		resp.Redis = "disabled"
	} else if err := h.redis.Health(ctx); err != nil {
		resp.Redis = "error"
		if status == http.StatusOK {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, status, resp)
}
