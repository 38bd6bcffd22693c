package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"devproxy/internal/config"
	"devproxy/internal/metrics"
)

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/__devproxy/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewAdminHandler(&config.Config{}, "test", nil)
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/__devproxy/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := &config.Config{
		Backend: config.BackendConfig{URL: "http://127.0.0.1:8000"},
		Static:  config.StaticConfig{Root: "/srv/frontend"},
	}
	h := NewAdminHandler(cfg, "1.2.3", nil)
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]string{
		"status":      "ok",
		"version":     "1.2.3",
		"backend_url": "http://127.0.0.1:8000",
		"static_root": "/srv/frontend",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body.%s = %q, want %q", k, body[k], v)
		}
	}
}

func TestMetrics_Enabled(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/__devproxy/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	m := metrics.New()
	m.RequestsTotal.WithLabelValues("GET", "200", "/api").Inc()
	h := NewAdminHandler(&config.Config{}, "test", m)
	if err := h.Metrics(c); err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "devproxy_http_requests_total") {
		t.Error("expected devproxy_http_requests_total in exposition")
	}
}

func TestMetrics_Disabled(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/__devproxy/metrics", http.NoBody)
	c := e.NewContext(req, httptest.NewRecorder())

	h := NewAdminHandler(&config.Config{}, "test", nil)
	err := h.Metrics(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("Metrics() error = %v, want 404 HTTPError", err)
	}
}
