package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"devproxy/internal/config"
	"devproxy/internal/model"
)

// Action is the outcome of classifying a request.
type Action int

const (
	ActionStatic Action = iota
	ActionForward
	ActionPreflight
	ActionMethodNotAllowed
	ActionNotImplemented
)

func (a Action) String() string {
	switch a {
	case ActionStatic:
		return "static"
	case ActionForward:
		return "forward"
	case ActionPreflight:
		return "preflight"
	case ActionMethodNotAllowed:
		return "method_not_allowed"
	case ActionNotImplemented:
		return "not_implemented"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Classify decides how a request is served:
//
//	OPTIONS          any path          preflight
//	GET              /api/ or /ws/     forward
//	POST             /api/             forward
//	POST             other             405
//	GET, HEAD        other             static
//	anything else                      501
func Classify(method, path string) Action {
	isAPI := strings.HasPrefix(path, config.APIPrefix)
	isWS := strings.HasPrefix(path, config.WebSocketPrefix)

	switch method {
	case http.MethodOptions:
		return ActionPreflight
	case http.MethodGet:
		if isAPI || isWS {
			return ActionForward
		}
		return ActionStatic
	case http.MethodPost:
		if isAPI {
			return ActionForward
		}
		return ActionMethodNotAllowed
	case http.MethodHead:
		return ActionStatic
	}
	return ActionNotImplemented
}

// Router is the catch-all handler: it classifies each request and delegates
// to the proxy or the static file handler.
type Router struct {
	proxy  *ProxyHandler
	static echo.HandlerFunc
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(proxy *ProxyHandler, static StaticHandler, logger *slog.Logger) *Router {
	return &Router{
		proxy:  proxy,
		static: echo.HandlerFunc(static),
		logger: logger.With("component", "router"),
	}
}

// Handle serves one request according to Classify.
func (r *Router) Handle(c echo.Context) error {
	req := c.Request()
	action := Classify(req.Method, req.URL.Path)
	r.logger.Debug("route", "method", req.Method, "path", req.URL.Path, "action", action)

	switch action {
	case ActionForward:
		return r.proxy.Handle(c)
	case ActionPreflight:
		model.SetCORS(c.Response().Header())
		return c.NoContent(http.StatusOK)
	case ActionMethodNotAllowed:
		return c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	case ActionNotImplemented:
		return c.String(http.StatusNotImplemented, fmt.Sprintf("Unsupported method ('%s')", req.Method))
	default:
		return r.static(c)
	}
}
