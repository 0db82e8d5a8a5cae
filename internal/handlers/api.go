package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts/adapters"
	"github.com/lexwatch/lexwatch/internal/database"
	"github.com/lexwatch/lexwatch/internal/middleware"
	"github.com/lexwatch/lexwatch/internal/services"
)

// AlertHistory is the archive query surface used by the history endpoint
type AlertHistory interface {
	ListAlerts(ctx context.Context, filter database.AlertFilter) ([]database.AlertRecord, int64, error)
}

// APIHandler serves the admin API over the alert manager
type APIHandler struct {
	manager  *services.AlertManager
	history  AlertHistory
	adapters *adapters.Registry
	logger   *zap.Logger
}

// NewAPIHandler creates a new API handler. history may be nil when the
// archive is disabled.
func NewAPIHandler(manager *services.AlertManager, history AlertHistory, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		manager: manager,
		history: history,
		logger:  logger.Named("api"),
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Alerts
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("POST /api/alerts", h.handleCreateAlert)
	mux.HandleFunc("GET /api/alerts/history", h.handleAlertHistory)
	mux.HandleFunc("GET /api/alerts/{id}", h.handleGetAlert)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", h.handleResolveAlert)

	// Correlation patterns
	mux.HandleFunc("GET /api/patterns", h.handleListPatterns)
	mux.HandleFunc("POST /api/patterns", h.handleCreatePattern)
	mux.HandleFunc("DELETE /api/patterns/{id}", h.handleDeletePattern)

	// Correlation groups
	mux.HandleFunc("GET /api/groups", h.handleListGroups)
	mux.HandleFunc("GET /api/groups/{id}", h.handleGetGroup)
	mux.HandleFunc("POST /api/groups/{id}/resolve", h.handleResolveGroup)

	// Statistics
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("GET /api/stats/correlation", h.handleCorrelationStats)

	// Runtime webhook list
	mux.HandleFunc("GET /api/webhooks", h.handleListWebhooks)
	mux.HandleFunc("POST /api/webhooks", h.handleAddWebhook)
	mux.HandleFunc("DELETE /api/webhooks", h.handleRemoveWebhook)
}

// SetupIngestRoutes registers the producer endpoints behind API key auth.
// They live outside /api so operator sessions and producer keys stay
// apart. registry may be nil to accept only native alerts.
func (h *APIHandler) SetupIngestRoutes(mux *http.ServeMux, auth *middleware.APIKeyAuth, registry *adapters.Registry) {
	mux.Handle("POST /ingest/alerts", auth.Wrap(http.HandlerFunc(h.handleCreateAlert)))
	if registry != nil {
		h.adapters = registry
		mux.Handle("POST /ingest/{source}", auth.Wrap(http.HandlerFunc(h.handleProviderIngest)))
	}
}
