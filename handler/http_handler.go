package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gemini-proxy/config"
	"gemini-proxy/metrics"
)

// Forwarder sends a request upstream, retrying as it sees fit.
type Forwarder interface {
	Forward(ctx context.Context, method, url string, headers http.Header, body []byte) (*http.Response, error)
}

// HTTPHandler relays POST bodies to the generateContent endpoint with the
// server-side API key attached.
type HTTPHandler struct {
	Config  *config.Config
	Backend Forwarder
	Metrics *metrics.ForwardMetrics
}

// NewHTTPHandler creates a new instance of HTTPHandler
func NewHTTPHandler(cfg *config.Config, backend Forwarder, m *metrics.ForwardMetrics) *HTTPHandler {
	return &HTTPHandler{
		Config:  cfg,
		Backend: backend,
		Metrics: m,
	}
}

// NewConfigErrorHandler answers every request with the generic 500 and logs
// the configuration error that prevented the proxy from starting.
func NewConfigErrorHandler(cfgErr error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defer func() {
			logRequest(r, sw.status, sw.written, time.Since(start))
		}()
		logAndReturnError(sw, msgInternalError, http.StatusInternalServerError, fmt.Sprintf("Invalid configuration: %s", cfgErr))
	})
}

// ServeHTTP implements the http.Handler interface for HTTPHandler.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	defer func() {
		logRequest(r, sw.status, sw.written, time.Since(start))
	}()
	w = sw

	if !h.Config.HasAPIKey() {
		logAndReturnError(w, msgAPIKeyMissing, http.StatusInternalServerError, "GEMINI_API_KEY is not set, rejecting request")
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = fmt.Fprintf(w, "Method %s Not Allowed", r.Method)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logAndReturnError(w, msgInternalError, http.StatusInternalServerError, fmt.Sprintf("Error reading request body: %s", err))
		return
	}
	payload, err := encodePayload(body)
	if err != nil {
		logAndReturnError(w, msgInternalError, http.StatusInternalServerError, fmt.Sprintf("Error encoding payload: %s", err))
		return
	}

	data, err := h.forward(r.Context(), payload)
	if err != nil {
		logAndReturnError(w, msgInternalError, http.StatusInternalServerError, fmt.Sprintf("Error in proxy handler: %s", err))
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// forward runs the upstream exchange and returns the compacted JSON answer.
// Client disconnects do not cancel it.
func (h *HTTPHandler) forward(ctx context.Context, payload []byte) ([]byte, error) {
	done := h.Metrics.Begin()
	result := metrics.ResultFailure
	defer func() { done(result) }()

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	resp, err := h.Backend.Forward(context.WithoutCancel(ctx), http.MethodPost, h.Config.Endpoint(), headers, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	result = metrics.ResultSuccess
	return buf.Bytes(), nil
}

// encodePayload returns the outbound JSON for an inbound body. JSON bodies are
// kept byte-for-byte, other text becomes a JSON string and an empty body stays
// empty.
func encodePayload(body []byte) ([]byte, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if json.Valid(body) {
		return body, nil
	}
	return json.Marshal(string(body))
}
