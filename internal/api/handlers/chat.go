package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmarkov/finsight/internal/api/middleware"
	"github.com/dmarkov/finsight/internal/domain"
)

// maxReceiptBytes caps receipt uploads at 10 MiB.
const maxReceiptBytes = 10 << 20

// ChatText handles POST /api/chat/text: free text in, executed command out.
func (a *API) ChatText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Text is required")
		return
	}

	cmd, err := a.extractor.ParseText(r.Context(), req.Text, time.Now().Format(domain.DateFormat), a.exchangeRate(r))
	if err != nil {
		a.log.Warn().Err(err).Msg("Text extraction failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not parse input; try rephrasing or use the form")
		return
	}

	_, owner := userID(r)
	result, err := a.manager.ProcessCommand(r.Context(), owner, *cmd)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusOK, result)
}

// ChatReceipt handles POST /api/chat/receipt: a receipt image in the request
// body, one persisted expense out.
func (a *API) ChatReceipt(w http.ResponseWriter, r *http.Request) {
	imageData, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBytes+1))
	if err != nil || len(imageData) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Image body is required")
		return
	}
	if len(imageData) > maxReceiptBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}

	payload, err := a.extractor.ParseReceipt(r.Context(), imageData, r.Header.Get("Content-Type"))
	if err != nil {
		a.log.Warn().Err(err).Msg("Receipt extraction failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not read the receipt; enter the transaction manually")
		return
	}

	_, owner := userID(r)
	id, err := a.manager.AddTransaction(r.Context(), *payload, owner)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// exchangeRate reads the configured rate from settings at call time. The
// rate is deliberately not cached on the handler: a stale in-memory value
// would leak across sessions.
func (a *API) exchangeRate(r *http.Request) float64 {
	value, ok, err := a.store.GetSetting(r.Context(), domain.SettingExchangeRate)
	if err != nil || !ok {
		return 0
	}
	rate, err := strconv.ParseFloat(value, 64)
	if err != nil || rate <= 0 {
		return 0
	}
	return rate
}
