package handler

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"devproxy/internal/config"
)

// StaticHandler serves files from the static root.
type StaticHandler echo.HandlerFunc

// NewStaticHandler serves cfg.Static.Root with index.html resolution and,
// when enabled, directory listings. Missing paths become echo.ErrNotFound.
func NewStaticHandler(cfg *config.Config) StaticHandler {
	static := echomw.StaticWithConfig(echomw.StaticConfig{
		Root:   cfg.Static.Root,
		Index:  "index.html",
		Browse: cfg.Static.BrowseEnabled(),
	})
	return StaticHandler(static(func(echo.Context) error {
		return echo.ErrNotFound
	}))
}
