package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dmarkov/finsight/internal/api/middleware"
	"github.com/dmarkov/finsight/internal/domain"
)

type filterJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Column   string `json:"filter_column"`
	Text     string `json:"filter_text"`
	IsShared bool   `json:"is_shared"`
	Owner    string `json:"owner,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ListFilters handles GET /api/filters: the union of filters the user owns
// and filters shared with them that they accepted.
func (a *API) ListFilters(w http.ResponseWriter, r *http.Request) {
	id, _ := userID(r)
	visible, err := a.store.GetVisibleFilters(r.Context(), id)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to list filters")
		middleware.WriteDomainError(w, err)
		return
	}

	list := make([]filterJSON, 0, len(visible))
	for _, f := range visible {
		list = append(list, filterJSON{
			ID:       f.ID,
			Name:     f.Name,
			Column:   string(f.Column),
			Text:     f.Text,
			IsShared: f.IsShared,
			Owner:    f.OwnerUsername,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"filters": list})
}

// SaveFilter handles POST /api/filters
func (a *API) SaveFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Column string `json:"filter_column"`
		Text   string `json:"filter_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}
	column, err := domain.ParseFilterColumn(req.Column)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	_, owner := userID(r)
	id, err := a.store.SaveFilter(r.Context(), domain.SavedFilter{
		Name:    req.Name,
		Column:  column,
		Text:    req.Text,
		OwnerID: owner,
	})
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// DeleteFilter handles DELETE /api/filters/{id}. Owner only; shared access
// never grants deletion.
func (a *API) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid filter id")
		return
	}

	owner, _ := userID(r)
	if err := a.store.DeleteSavedFilter(r.Context(), id, owner); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ShareFilter handles POST /api/filters/{id}/share
func (a *API) ShareFilter(w http.ResponseWriter, r *http.Request) {
	filterID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid filter id")
		return
	}

	var req struct {
		PartnerID int64 `json:"partner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PartnerID == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "partner_id is required")
		return
	}

	id, _ := userID(r)
	if err := a.store.ShareFilter(r.Context(), filterID, id, req.PartnerID); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"shared": true})
}

// RespondToShare handles POST /api/filters/{id}/respond
func (a *API) RespondToShare(w http.ResponseWriter, r *http.Request) {
	filterID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid filter id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, _ := userID(r)
	if err := a.store.RespondToFilterShare(r.Context(), filterID, id, domain.ShareStatus(req.Status)); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// ListInvites handles GET /api/filters/invites
func (a *API) ListInvites(w http.ResponseWriter, r *http.Request) {
	id, _ := userID(r)
	invites, err := a.store.PendingFilterInvites(r.Context(), id)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	list := make([]filterJSON, 0, len(invites))
	for _, f := range invites {
		list = append(list, filterJSON{
			ID:     f.ID,
			Name:   f.Name,
			Column: string(f.Column),
			Text:   f.Text,
			Owner:  f.OwnerUsername,
			Status: string(f.Status),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"invites": list})
}
