package handler

import (
	"github.com/labstack/echo/v4"

	"devproxy/internal/config"
)

// RegisterRoutes wires the admin endpoints and the catch-all router onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, router *Router, admin *AdminHandler) {
	g := e.Group(cfg.Admin.Prefix)
	g.GET("/healthz", admin.Healthz)
	g.GET("/status", admin.Status)
	if cfg.Metrics.Enabled {
		g.GET("/metrics", admin.Metrics)
	}

	e.Any("/*", router.Handle)
}
