package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/channels"
)

// webhookChannel returns the registered webhook channel, writing a 404
// when none is registered
func (h *APIHandler) webhookChannel(w http.ResponseWriter) (*channels.WebhookChannel, bool) {
	ch, ok := h.manager.Channel("webhook")
	if !ok {
		api.RespondNotFound(w, "webhook channel")
		return nil, false
	}
	wh, ok := ch.(*channels.WebhookChannel)
	if !ok {
		api.RespondNotFound(w, "webhook channel")
		return nil, false
	}
	return wh, true
}

// handleListWebhooks handles GET /api/webhooks
func (h *APIHandler) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	wh, ok := h.webhookChannel(w)
	if !ok {
		return
	}
	api.RespondJSON(w, http.StatusOK, api.WebhookListResponse{URLs: wh.URLs()})
}

// handleAddWebhook handles POST /api/webhooks
func (h *APIHandler) handleAddWebhook(w http.ResponseWriter, r *http.Request) {
	var req api.WebhookRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}
	wh, ok := h.webhookChannel(w)
	if !ok {
		return
	}
	if err := wh.AddWebhook(req.URL); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Info("webhook added", zap.String("url", channels.RedactURL(req.URL)))
	api.RespondJSON(w, http.StatusCreated, api.WebhookListResponse{URLs: wh.URLs()})
}

// handleRemoveWebhook handles DELETE /api/webhooks
func (h *APIHandler) handleRemoveWebhook(w http.ResponseWriter, r *http.Request) {
	var req api.WebhookRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}
	wh, ok := h.webhookChannel(w)
	if !ok {
		return
	}
	if !wh.RemoveWebhook(req.URL) {
		api.RespondNotFound(w, "webhook")
		return
	}
	h.logger.Info("webhook removed", zap.String("url", channels.RedactURL(req.URL)))
	api.RespondJSON(w, http.StatusOK, api.WebhookListResponse{URLs: wh.URLs()})
}
