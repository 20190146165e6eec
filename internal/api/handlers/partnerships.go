package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dmarkov/finsight/internal/api/middleware"
	"github.com/dmarkov/finsight/internal/domain"
)

// ListPartners handles GET /api/partners
func (a *API) ListPartners(w http.ResponseWriter, r *http.Request) {
	id, _ := userID(r)
	partnerships, err := a.store.GetPartnerships(r.Context(), id)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	type partnerJSON struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Status   string `json:"status"`
		Incoming bool   `json:"incoming"`
	}
	list := make([]partnerJSON, 0, len(partnerships))
	for _, p := range partnerships {
		entry := partnerJSON{ID: p.ID, Status: string(p.Status)}
		if p.UserID == id {
			entry.Username = p.PartnerUsername
		} else {
			entry.Username = p.Username
			entry.Incoming = true
		}
		list = append(list, entry)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"partners": list})
}

// RequestPartner handles POST /api/partners. Requesting an already related
// user returns the existing relation and its status instead of an error.
func (a *API) RequestPartner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Username is required")
		return
	}

	id, _ := userID(r)
	p, err := a.store.SendPartnershipRequest(r.Context(), id, req.Username)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":     p.ID,
		"status": string(p.Status),
	})
}

// RespondToPartner handles POST /api/partners/{id}/respond
func (a *API) RespondToPartner(w http.ResponseWriter, r *http.Request) {
	partnershipID, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid partnership id")
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
	if err := a.store.UpdatePartnershipStatus(r.Context(), partnershipID, id, domain.ShareStatus(req.Status)); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
