package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"devproxy/internal/config"
	"devproxy/internal/metrics"
)

// Version is a string type for dependency injection of the build version.
type Version string

// AdminHandler serves health, status and metrics endpoints under the admin prefix.
type AdminHandler struct {
	cfg     *config.Config
	version Version
	metrics *metrics.Metrics
}

// NewAdminHandler creates an AdminHandler. m may be nil when metrics are disabled.
func NewAdminHandler(cfg *config.Config, v Version, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{cfg: cfg, version: v, metrics: m}
}

// Healthz returns a simple OK response for liveness checks.
func (h *AdminHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports where requests are being served from and forwarded to.
func (h *AdminHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "ok",
		"version":     string(h.version),
		"backend_url": h.cfg.Backend.URL,
		"static_root": h.cfg.Static.Root,
	})
}

// Metrics serves the Prometheus registry.
func (h *AdminHandler) Metrics(c echo.Context) error {
	if h.metrics == nil {
		return echo.ErrNotFound
	}
	h.metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
