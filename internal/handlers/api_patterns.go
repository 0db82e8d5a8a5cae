package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/correlation"
)

// handleListPatterns handles GET /api/patterns
func (h *APIHandler) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, h.manager.GetKnownPatterns())
}

// handleCreatePattern handles POST /api/patterns
func (h *APIHandler) handleCreatePattern(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePatternRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	pattern := api.PatternFromRequest(req)
	if err := h.manager.AddPattern(pattern); err != nil {
		switch {
		case errors.Is(err, correlation.ErrPatternExists):
			api.RespondErrorWithCode(w, http.StatusConflict, "pattern_exists", err.Error())
		case errors.Is(err, correlation.ErrInvalidPattern):
			api.RespondErrorWithCode(w, http.StatusUnprocessableEntity, "invalid_pattern", err.Error())
		default:
			api.RespondError(w, http.StatusInternalServerError, "Failed to add pattern")
		}
		return
	}
	h.logger.Info("pattern added", zap.String("pattern_id", pattern.ID))

	for _, p := range h.manager.GetKnownPatterns() {
		if p.ID == pattern.ID {
			api.RespondJSON(w, http.StatusCreated, p)
			return
		}
	}
	api.RespondJSON(w, http.StatusCreated, pattern)
}

// handleDeletePattern handles DELETE /api/patterns/{id}
func (h *APIHandler) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.manager.RemovePattern(id) {
		api.RespondNotFound(w, "pattern")
		return
	}
	h.logger.Info("pattern removed", zap.String("pattern_id", id))
	api.RespondNoContent(w)
}
