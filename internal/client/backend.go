// Package client provides the HTTP client used to reach the development backend.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devproxy/internal/config"
	"devproxy/internal/metrics"
	"devproxy/internal/model"
)

// BackendError reports an HTTP-level error status (>= 400) returned by the backend.
type BackendError struct {
	StatusCode int
	Reason     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, e.Reason)
}

// BackendClient performs buffered round-trips against the backend origin.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient. A zero backend timeout leaves the
// round-trip unbounded; cancellation then comes only from the request context.
// The metrics parameter is optional; pass nil to disable backend metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do sends one request to url and buffers the whole response body.
// A backend status >= 400 is returned as *BackendError with the body discarded.
func (c *BackendClient) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*model.ProxyResponse, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header = header

	c.logger.Debug("backend request",
		"method", req.Method,
		"url", url,
		"body_bytes", len(body),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	method = metrics.NormalizeMethod(req.Method)
	if err != nil {
		c.observe(method, "error", start)
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	c.logger.Debug("backend response",
		"status", resp.StatusCode,
		"bytes", len(data),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &BackendError{
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp),
		}
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *BackendClient) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.BackendDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	c.metrics.BackendResponses.WithLabelValues(method, status).Inc()
}

// reasonPhrase returns the reason text from the backend status line, falling
// back to the standard text for the code.
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
