package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ghl-proxy-go/internal/config"
	"ghl-proxy-go/internal/route"
)

// Version is a string type for dependency injection of the build version.
type Version string

// rootMessage is reported by the unauthenticated root health check.
const rootMessage = "GHL Proxy Server is running"

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	routes  *route.Table
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, routes *route.Table, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, routes: routes, version: v}
}

// Root answers GET / without authentication.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": rootMessage,
	})
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. Secrets are never included.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": h.cfg.Upstream.BaseURL,
		"api_version":  h.cfg.Upstream.Version,
		"routes":       h.routes.Len(),
	})
}
