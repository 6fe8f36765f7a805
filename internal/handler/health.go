package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/registry"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string   `json:"status"`
	Services []string `json:"services"`
}

// ServicesResponse is the body of GET /services.
type ServicesResponse struct {
	Services map[string]string `json:"services"`
}

// HealthHandler serves the gateway's own endpoints. Neither touches a backend.
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Health reports liveness and the registered service names.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Services: h.registry.Names(),
	})
}

// Services lists every service with its base URL.
func (h *HealthHandler) Services(c echo.Context) error {
	services := make(map[string]string)
	for _, s := range h.registry.All() {
		services[s.Name] = s.BaseURL.String()
	}
	return c.JSON(http.StatusOK, ServicesResponse{Services: services})
}
