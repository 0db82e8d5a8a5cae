package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/database"
	"github.com/lexwatch/lexwatch/internal/middleware"
	"github.com/lexwatch/lexwatch/internal/utils"
)

// handleCreateAlert handles POST /api/alerts and POST /ingest/alerts
func (h *APIHandler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAlertRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	title, titleModified := utils.SanitizeAlertText(req.Title)
	message, messageModified := utils.SanitizeAlertText(req.Message)
	if titleModified || messageModified {
		h.logger.Debug("sanitized alert text", zap.String("request_id", middleware.GetRequestID(r.Context())))
	}

	severity, _ := alerts.ParseSeverity(req.Severity)
	alert, created := h.manager.Submit(r.Context(), severity, title, message, alerts.Metadata(req.Metadata))

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	api.RespondJSON(w, status, api.CreateAlertResponse{Alert: alert, Deduplicated: !created})
}

// handleListAlerts handles GET /api/alerts?severity=&status=active|resolved|all
func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	severity, err := api.SeverityParam(r, "severity")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var list []*alerts.Alert
	switch status := r.URL.Query().Get("status"); status {
	case "", "all":
		list = h.manager.GetAlerts()
	case database.StatusActive:
		list = h.manager.GetActiveAlerts()
	case database.StatusResolved:
		all := h.manager.GetAlerts()
		list = make([]*alerts.Alert, 0, len(all))
		for _, a := range all {
			if a.Resolved {
				list = append(list, a)
			}
		}
	default:
		api.RespondError(w, http.StatusBadRequest, "status must be one of: active resolved all")
		return
	}

	if severity != "" {
		filtered := make([]*alerts.Alert, 0, len(list))
		for _, a := range list {
			if a.Severity == severity {
				filtered = append(filtered, a)
			}
		}
		list = filtered
	}
	api.RespondJSON(w, http.StatusOK, list)
}

// handleGetAlert handles GET /api/alerts/{id}
func (h *APIHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.manager.GetAlert(r.PathValue("id"))
	if !ok {
		api.RespondNotFound(w, "alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleResolveAlert handles POST /api/alerts/{id}/resolve
func (h *APIHandler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.manager.ResolveAlert(r.Context(), id) {
		api.RespondNotFound(w, "alert")
		return
	}
	alert, _ := h.manager.GetAlert(id)
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleAlertHistory handles GET /api/alerts/history. It pages through
// the archive, which outlives the in-memory alert set.
func (h *APIHandler) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		api.RespondErrorWithCode(w, http.StatusServiceUnavailable, "archive_disabled", "Alert archive is not configured")
		return
	}

	severity, err := api.SeverityParam(r, "severity")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := database.AlertFilter{Severity: severity}

	switch status := r.URL.Query().Get("status"); status {
	case "", "all":
	case database.StatusActive, database.StatusResolved:
		filter.Status = status
	default:
		api.RespondError(w, http.StatusBadRequest, "status must be one of: active resolved all")
		return
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.RespondError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}

	params := api.ParsePagination(r)
	filter.Limit = params.PerPage
	filter.Offset = params.Offset()

	records, total, err := h.history.ListAlerts(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list archived alerts", zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	api.RespondPaginated(w, api.RecordsToAlerts(records), params, total)
}
