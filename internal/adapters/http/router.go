// Package http exposes the fleet API over REST.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edgefleet/fleetcore/internal/application"
	"github.com/edgefleet/fleetcore/internal/metrics"
	"github.com/edgefleet/fleetcore/internal/ports"
)

// Handler is the HTTP adapter entrypoint for fleet use-cases.
// Keeping only application dependencies here preserves clean adapter boundaries.
type Handler struct {
	service    *application.Service
	limiter    ports.RateLimiter
	ready      func() error
	trustProxy bool
}

// NewHandler constructs an HTTP handler bound to the application service.
// ready reports backend health for the readiness probe and may be nil.
// trustProxy enables X-Forwarded-For resolution and must only be set when a
// trusted proxy terminates client connections.
func NewHandler(service *application.Service, limiter ports.RateLimiter, ready func() error, trustProxy bool) *Handler {
	return &Handler{service: service, limiter: limiter, ready: ready, trustProxy: trustProxy}
}

// NewRouter registers the fleet HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(handler.rateLimitMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/fleet/v1", func(r chi.Router) {
		r.Post("/auth/bootstrap", handler.bootstrap)
		r.Post("/auth/login", handler.login)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/auth/register", handler.registerUser)
			r.Get("/auth/me", handler.whoami)

			r.Post("/devices", handler.registerDevice)
			r.Get("/devices", handler.listDevices)
			r.Delete("/devices/{device_id}", handler.deleteDevice)
			r.Post("/devices/{device_id}/key", handler.setDeviceKey)
			r.Delete("/devices/{device_id}/key", handler.revokeDeviceKey)

			r.Post("/devices/{device_id}/logs", handler.ingestLog)
			r.Get("/devices/{device_id}/logs", handler.listLogs)

			r.Get("/orgs/{org_id}/quota", handler.orgQuota)

			r.Post("/webhooks", handler.createSubscription)
			r.Get("/webhooks", handler.listSubscriptions)
			r.Delete("/webhooks/{subscription_id}", handler.deleteSubscription)
			r.Post("/webhooks/{subscription_id}/reactivate", handler.reactivateSubscription)
			r.Post("/webhooks/test", handler.testSubscription)
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
