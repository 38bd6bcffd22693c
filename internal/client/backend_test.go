package client

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devproxy/internal/config"
	"devproxy/internal/metrics"
)

func newTestClient(timeoutSeconds int, m *metrics.Metrics) *BackendClient {
	cfg := &config.Config{
		Backend: config.BackendConfig{
			TimeoutSeconds:  timeoutSeconds,
			IdleConnections: 4,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBackendClient(cfg, logger, m)
}

func TestBackendClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"u":"a"}` {
			t.Errorf("body = %q, want %q", body, `{"u":"a"}`)
		}
		if r.Header.Get("X-Trace") != "abc" {
			t.Errorf("X-Trace = %q, want %q", r.Header.Get("X-Trace"), "abc")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(10, nil)
	resp, err := c.Do(context.Background(), http.MethodPost, srv.URL+"/api/login",
		http.Header{"X-Trace": {"abc"}}, []byte(`{"u":"a"}`))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if string(resp.Body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", resp.Body, `{"status":"ok"}`)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want %q", resp.Header.Get("Content-Type"), "application/json")
	}
}

func TestBackendClient_Do_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such route", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(10, nil)
	_, err := c.Do(context.Background(), http.MethodGet, srv.URL+"/api/missing", http.Header{}, nil)

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Do() error = %v, want *BackendError", err)
	}
	if be.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", be.StatusCode, http.StatusNotFound)
	}
	if be.Reason != "Not Found" {
		t.Errorf("Reason = %q, want %q", be.Reason, "Not Found")
	}
}

func TestBackendClient_Do_DecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("Accept-Encoding = %q, want transport-managed gzip", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(`{"zipped":true}`))
		_ = gz.Close()
	}))
	defer srv.Close()

	c := newTestClient(10, nil)
	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL+"/api/z", http.Header{}, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(resp.Body) != `{"zipped":true}` {
		t.Errorf("body = %q, want decoded JSON", resp.Body)
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Errorf("Content-Encoding = %q, want empty after transparent decode", resp.Header.Get("Content-Encoding"))
	}
}

func TestBackendClient_Do_Unreachable(t *testing.T) {
	c := newTestClient(1, nil)

	_, err := c.Do(context.Background(), http.MethodGet, "http://127.0.0.1:1/api/x", http.Header{}, nil)
	if err == nil {
		t.Fatal("Do() expected error for unreachable host, got nil")
	}
	var be *BackendError
	if errors.As(err, &be) {
		t.Errorf("Do() error = %v, want transport error, not *BackendError", err)
	}
}

func TestBackendClient_Do_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Do(ctx, http.MethodGet, srv.URL+"/slow", http.Header{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
}

func TestBackendClient_Do_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := metrics.New()
	c := newTestClient(10, m)
	if _, err := c.Do(context.Background(), http.MethodGet, srv.URL+"/api/x", http.Header{}, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() != "devproxy_backend_responses_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == "GET" && labels["status_code"] == "200" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected devproxy_backend_responses_total{method=GET,status_code=200}")
	}
}

func TestReasonPhrase(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		want string
	}{
		{"custom reason", &http.Response{StatusCode: 418, Status: "418 Short And Stout"}, "Short And Stout"},
		{"standard reason", &http.Response{StatusCode: 500, Status: "500 Internal Server Error"}, "Internal Server Error"},
		{"missing reason", &http.Response{StatusCode: 503, Status: "503"}, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reasonPhrase(tt.resp); got != tt.want {
				t.Errorf("reasonPhrase() = %q, want %q", got, tt.want)
			}
		})
	}
}
