// Package model defines request-scoped types shared by the proxy layers.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ProxyRequest represents a caller request to be forwarded to the backend.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// URI is the original request target (path and query) exactly as received.
	URI    string
	Header http.Header
	// ContentLength is the declared body size; zero or negative means no body.
	ContentLength int64
	Body          io.Reader
}

// ProxyResponse is a fully buffered backend response ready to be relayed.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// CORSHeaders are set on every proxied and preflight response.
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization",
}

// SetCORS overwrites the CORS headers on h.
func SetCORS(h http.Header) {
	for k, v := range CORSHeaders {
		h.Set(k, v)
	}
}

// ErrorBody renders msg as the {"error": "<msg>"} envelope. Non-ASCII text is
// written as UTF-8, not \u escapes.
func ErrorBody(msg string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"error": `)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(msg) // encoding a string cannot fail
	buf.Truncate(buf.Len() - 1)
	buf.WriteByte('}')
	return buf.Bytes()
}
