package handlers

import (
	"net/http"

	"github.com/lexwatch/lexwatch/internal/api"
)

// handleStats handles GET /api/stats
func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, api.StatsResponse{
		Alerts:      h.manager.Statistics(),
		Correlation: h.manager.GetCorrelationStatistics(),
		Channels:    api.ChannelsToStatus(h.manager.Channels()),
	})
}

// handleCorrelationStats handles GET /api/stats/correlation
func (h *APIHandler) handleCorrelationStats(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, h.manager.GetCorrelationStatistics())
}
