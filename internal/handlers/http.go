package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexwatch/lexwatch/internal/api"
)

// Version is reported by the health endpoint
var Version = "dev"

// HTTPHandler serves the unauthenticated operational endpoints
type HTTPHandler struct {
	metrics http.Handler
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler() *HTTPHandler {
	return &HTTPHandler{metrics: promhttp.Handler()}
}

// SetupRoutes configures health and metrics routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("GET /metrics", h.metrics)
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}
