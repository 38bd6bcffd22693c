package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"devproxy/internal/client"
	"devproxy/internal/model"
	"devproxy/internal/service"
)

// ProxyHandler forwards API and websocket-prefixed requests to the backend.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request and relays the buffered backend response with
// CORS headers and a recomputed Content-Length.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		URI:           requestURI(req),
		Header:        req.Header,
		ContentLength: req.ContentLength,
		Body:          req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	if err := writeBody(c, resp.StatusCode, resp.Header, resp.Body); err != nil {
		h.logger.Debug("writing proxied response", "err", err, "path", req.URL.Path)
	}
	return nil
}

// mapError turns a forwarding failure into the caller-visible JSON error.
// Backend errors keep their status and an oversized request body is 413. Other failures are 500.
// A failure to send that response is logged and dropped.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	var be *client.BackendError
	if errors.As(err, &be) {
		h.logger.Warn("backend error", "status", be.StatusCode, "reason", be.Reason, "path", path)
		header := http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}}
		body := model.ErrorBody("Backend error: " + be.Reason)
		if werr := writeBody(c, be.StatusCode, header, body); werr != nil {
			h.logger.Debug("writing backend error response", "err", werr, "path", path)
		}
		return nil
	}

	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	h.logger.Error("proxy error", "err", err, "cause", failureCause(err), "status", status, "path", path)
	header := http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}}
	body := model.ErrorBody("Proxy error: " + err.Error())
	if werr := writeBody(c, status, header, body); werr != nil {
		h.logger.Debug("writing proxy error response", "err", werr, "path", path)
	}
	return nil
}

// failureCause gives a short log label for a transport or decode failure.
func failureCause(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "client_disconnected"
	}
	if errors.Is(err, service.ErrShortBody) {
		return "short_request_body"
	}
	if errors.Is(err, service.ErrBodyTooLarge) {
		return "request_body_too_large"
	}
	if errors.Is(err, service.ErrUndecodableBody) {
		return "undecodable_body"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}

// writeBody writes a complete response: header copied through, CORS set,
// Content-Length matching body.
func writeBody(c echo.Context, status int, header http.Header, body []byte) error {
	dst := c.Response().Header()
	for key, vals := range header {
		dst[key] = vals
	}
	model.SetCORS(dst)
	dst.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))

	c.Response().WriteHeader(status)
	_, err := c.Response().Write(body)
	return err
}

// requestURI returns the request target as received, in origin form.
func requestURI(req *http.Request) string {
	if strings.HasPrefix(req.RequestURI, "/") {
		return req.RequestURI
	}
	return req.URL.RequestURI()
}
