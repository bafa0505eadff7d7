package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// healthProbeTimeout caps the total time spent probing dependencies. The
// orchestrator polls /healthz frequently; a hung dependency must not stack
// up probe goroutines.
const healthProbeTimeout = 2 * time.Second

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

// NewHealthHandler returns the /healthz handler. Every registered dependency
// is probed on each request; any failure turns the response into a 503 so
// the orchestrator stops routing traffic here.
func NewHealthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		var failed []string
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"dependency", name,
					"error", err,
				)
				failed = append(failed, name)
			}
		}
		sort.Strings(failed)

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "degraded",
				"failed": failed,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}
