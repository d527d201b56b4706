package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStatus reports per-service breaker state.
type BreakerStatus interface {
	Snapshot() map[string]string
}

type HealthHandler struct {
	db      Pinger
	breaker BreakerStatus
}

func NewHealthHandler(db Pinger, breaker BreakerStatus) *HealthHandler {
	return &HealthHandler{db: db, breaker: breaker}
}

// Get handles GET /healthz. An unreachable database makes the service
// unhealthy; open upstream breakers are reported but do not.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]interface{}{"status": "ok"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "unavailable"
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}
	if h.breaker != nil {
		resp["upstreams"] = h.breaker.Snapshot()
	}
	writeJSON(w, status, resp)
}
