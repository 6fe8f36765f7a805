// Package handler contains the gateway's HTTP handlers and route wiring.
package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"api-gateway-go/internal/config"
	"api-gateway-go/internal/metrics"
	"api-gateway-go/internal/registry"
	"api-gateway-go/internal/route"
)

// RegisterRoutes wires the gateway endpoints and every route-table binding
// onto the Echo instance. Routes naming an unregistered service are still
// bound; they answer 404 at forward time.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	table *route.Table,
	reg *registry.Registry,
	proxy *ProxyHandler,
	health *HealthHandler,
	m *metrics.Metrics,
	logger *slog.Logger,
) {
	e.GET("/health", health.Health)
	e.GET("/services", health.Services)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	for _, r := range table.Routes {
		if !reg.Has(r.Service) {
			logger.Warn("route refers to unknown service",
				"route", r.Name,
				"service", r.Service,
			)
		}
		h := proxy.Handle(r)
		for _, method := range r.Methods {
			e.Add(method, r.EchoPath(), h).Name = r.Name
		}
	}

	logger.Info("routes registered",
		"routes", len(table.Routes),
		"services", len(reg.Names()),
	)
}
