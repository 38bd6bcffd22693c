// Package service implements the forwarding algorithm between callers and the backend.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"devproxy/internal/client"
	"devproxy/internal/config"
	"devproxy/internal/model"
)

// ErrShortBody is returned when the request body ends before its declared length.
var ErrShortBody = errors.New("request body shorter than Content-Length")

// ErrBodyTooLarge is returned when the declared request body exceeds server.body_max_bytes.
var ErrBodyTooLarge = errors.New("request body exceeds configured limit")

// ErrUndecodableBody is returned when a non-JSON backend body is not UTF-8 text.
var ErrUndecodableBody = errors.New("backend body is neither JSON nor UTF-8 text")

// droppedRequestHeaders are regenerated by the outbound transport.
// Accept-Encoding is left to the transport so the body arrives decoded.
var droppedRequestHeaders = map[string]bool{
	"Host":            true,
	"Connection":      true,
	"Content-Length":  true,
	"Accept-Encoding": true,
}

// droppedResponseHeaders misdescribe a buffered, re-encoded body.
var droppedResponseHeaders = map[string]bool{
	"Transfer-Encoding": true,
	"Content-Encoding":  true,
	"Content-Length":    true,
}

// ProxyService forwards requests to the configured backend origin.
type ProxyService struct {
	client  *client.BackendClient
	origin  string
	maxBody int64
	logger  *slog.Logger
}

// NewProxyService creates a ProxyService bound to cfg.Backend.URL.
func NewProxyService(c *client.BackendClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		client:  c,
		origin:  cfg.Backend.URL,
		maxBody: cfg.Server.BodyMaxBytes,
		logger:  logger.With("component", "proxy_service"),
	}
}

// Forward relays pr to the backend and returns the response to send back.
// The returned body is always valid JSON; see normalizeBody.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	body, err := readBody(pr.Body, pr.ContentLength, s.maxBody)
	if err != nil {
		return nil, err
	}

	target := s.buildTargetURL(pr.URI)
	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"target", target,
	)

	resp, err := s.client.Do(pr.Ctx, pr.Method, target, filterRequestHeaders(pr.Header), body)
	if err != nil {
		return nil, fmt.Errorf("forward to backend: %w", err)
	}

	normalized, err := normalizeBody(resp.Body)
	if err != nil {
		return nil, err
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     filterResponseHeaders(resp.Header),
		Body:       normalized,
	}, nil
}

// buildTargetURL appends the original request URI to the origin without rewriting.
func (s *ProxyService) buildTargetURL(uri string) string {
	return s.origin + uri
}

// readBody reads exactly n bytes from r. A non-positive n means no body;
// a non-positive limit means no limit.
func readBody(r io.Reader, n, limit int64) ([]byte, error) {
	if n <= 0 || r == nil {
		return nil, nil
	}
	if limit > 0 && n > limit {
		return nil, fmt.Errorf("read request body: %d bytes: %w", n, ErrBodyTooLarge)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read request body: %w", ErrShortBody)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return buf, nil
}

// normalizeBody returns body unchanged when it is valid JSON and otherwise
// wraps its text as {"error": "<text>"}. Empty bodies are wrapped too.
// Bodies that are not UTF-8 fail, including JSON with invalid bytes in strings.
func normalizeBody(body []byte) ([]byte, error) {
	if !utf8.Valid(body) {
		return nil, ErrUndecodableBody
	}
	if json.Valid(body) {
		return body, nil
	}
	return model.ErrorBody(string(body)), nil
}

func filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if droppedRequestHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if droppedResponseHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}
