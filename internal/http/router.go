// Package httpapi assembles the HTTP surface: the middleware chain, the /v1
// API group, and the operational endpoints. Feature handlers register their
// own routes; this package only decides ordering and grouping.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provenance/internal/platform/metrics"
	"provenance/internal/platform/middleware"
	id "provenance/pkg/domain"
	"provenance/pkg/platform/middleware/device"
	"provenance/pkg/platform/middleware/metadata"
	"provenance/pkg/platform/middleware/requesttime"
	"provenance/pkg/platform/middleware/version"
)

// defaultRequestTimeout bounds a single API request. Runs keep driving in
// the background; only the HTTP wait is capped.
const defaultRequestTimeout = 30 * time.Second

// Registrar mounts one feature's routes on a router group.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries the router's collaborators.
type Deps struct {
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
	Health           http.Handler
	ParseDeviceLabel func(string) string
	RequestTimeout   time.Duration
	V1               []Registrar
}

// NewRouter assembles the middleware chain and mounts all routes. Order
// matters: recovery wraps everything, request ID and request time run before
// any logging, and client metadata must be set before any handler that emits
// audit events.
func NewRouter(deps Deps) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if deps.ParseDeviceLabel != nil {
		r.Use(device.Label(deps.ParseDeviceLabel))
	}
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))
	r.Use(middleware.Timeout(timeout))

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", deps.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(version.ExtractVersion(id.APIVersionV1))
		v1.Use(middleware.ContentTypeJSON)
		for _, feature := range deps.V1 {
			feature.Register(v1)
		}
	})

	return r
}
