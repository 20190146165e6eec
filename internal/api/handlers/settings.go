package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dmarkov/finsight/internal/api/middleware"
)

// GetSetting handles GET /api/settings/{key}
func (a *API) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, ok, err := a.store.GetSetting(r.Context(), key)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Setting not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// PutSetting handles PUT /api/settings/{key} with upsert semantics.
func (a *API) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := a.store.UpdateSetting(r.Context(), key, req.Value); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	a.hub.Broadcast("settings_changed")
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
