// Package metrics exposes the service's Prometheus instrumentation.
// Label values never carry tenant or credential material.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// WebhookDeliveries counts delivery attempts by outcome (success/failure).
var WebhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fleetcore",
	Name:      "webhook_deliveries_total",
	Help:      "Webhook delivery attempts by outcome",
}, []string{"outcome"})

// WebhookAutoDisables counts subscriptions disabled by consecutive failures.
var WebhookAutoDisables = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "fleetcore",
	Name:      "webhook_auto_disables_total",
	Help:      "Webhook subscriptions auto-disabled after consecutive delivery failures",
})

// RateLimitRejections counts requests rejected by the sliding-window limiter.
var RateLimitRejections = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "fleetcore",
	Name:      "rate_limit_rejections_total",
	Help:      "Requests rejected by the request rate limiter",
})

// LoginLockouts counts lockout rejections at login.
var LoginLockouts = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "fleetcore",
	Name:      "login_lockouts_total",
	Help:      "Login attempts rejected while a credential key was locked",
})

// QuotaDenials counts hard quota rejections by resource.
var QuotaDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fleetcore",
	Name:      "quota_denials_total",
	Help:      "Quota enforcement rejections by resource",
}, []string{"resource"})

// Registry returns the process registry with all service collectors bound.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.MustRegister(
			WebhookDeliveries,
			WebhookAutoDisables,
			RateLimitRejections,
			LoginLockouts,
			QuotaDenials,
		)
	})
	return registry
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}
