package handlers

import (
	"net/http"

	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/correlation"
)

// handleListGroups handles GET /api/groups?status=active|resolved|all
func (h *APIHandler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.manager.GetGroups()

	var keep func(*correlation.AlertGroup) bool
	switch r.URL.Query().Get("status") {
	case "", "all":
	case "active":
		keep = func(g *correlation.AlertGroup) bool { return !g.Resolved }
	case "resolved":
		keep = func(g *correlation.AlertGroup) bool { return g.Resolved }
	default:
		api.RespondError(w, http.StatusBadRequest, "status must be one of: active resolved all")
		return
	}
	if keep != nil {
		filtered := groups[:0]
		for _, g := range groups {
			if keep(g) {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}
	api.RespondJSON(w, http.StatusOK, api.GroupsToResponses(groups))
}

// handleGetGroup handles GET /api/groups/{id}
func (h *APIHandler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.manager.GetGroup(r.PathValue("id"))
	if !ok {
		api.RespondNotFound(w, "group")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.GroupToResponse(group))
}

// handleResolveGroup handles POST /api/groups/{id}/resolve
func (h *APIHandler) handleResolveGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.manager.ResolveCorrelatedGroup(r.Context(), id) {
		api.RespondNotFound(w, "group")
		return
	}
	group, ok := h.manager.GetGroup(id)
	if !ok {
		api.RespondNoContent(w)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.GroupToResponse(group))
}
