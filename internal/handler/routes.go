package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ghl-proxy-go/internal/config"
	"ghl-proxy-go/internal/credentials"
	"ghl-proxy-go/internal/metrics"
	"ghl-proxy-go/internal/middleware"
	"ghl-proxy-go/internal/route"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Every table
// route is registered under the /v1 group, which is guarded by the proxy key.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	creds *credentials.Store,
	m *metrics.Metrics,
	table *route.Table,
	proxy *ProxyHandler,
	health *HealthHandler,
) {
	e.GET("/", health.Root)
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	v1 := e.Group(route.Prefix, middleware.ProxyKeyAuth(creds, cfg.Proxy.Header, m))
	for _, r := range table.Routes() {
		v1.Add(r.Method, r.RelativePattern(), proxy.Handle)
	}
}
