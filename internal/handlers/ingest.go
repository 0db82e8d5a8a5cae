package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/utils"
)

// handleProviderIngest handles POST /ingest/{source}. The provider payload
// is translated by the source's adapter and every firing alert is
// submitted to the alert manager.
func (h *APIHandler) handleProviderIngest(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	adapter, ok := h.adapters.Get(source)
	if !ok {
		api.RespondNotFound(w, "alert source")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.MaxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	submissions, err := adapter.Parse(body)
	if err != nil {
		h.logger.Warn("failed to parse provider payload", zap.String("source", source), zap.Error(err))
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	resp := api.IngestResponse{Source: source, AlertIDs: []string{}}
	for _, s := range submissions {
		if s.Recovered {
			resp.Recovered++
			continue
		}
		title, _ := utils.SanitizeAlertText(s.Title)
		message, _ := utils.SanitizeAlertText(s.Message)
		alert, created := h.manager.Submit(r.Context(), s.Severity, title, message, s.Metadata)
		if created {
			resp.Accepted++
		} else {
			resp.Deduplicated++
		}
		resp.AlertIDs = append(resp.AlertIDs, alert.ID)
	}

	h.logger.Info("provider alerts ingested",
		zap.String("source", source),
		zap.Int("accepted", resp.Accepted),
		zap.Int("deduplicated", resp.Deduplicated),
		zap.Int("recovered", resp.Recovered))
	api.RespondJSON(w, http.StatusAccepted, resp)
}
