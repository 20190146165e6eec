package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmarkov/finsight/internal/api/middleware"
	"github.com/dmarkov/finsight/internal/domain"
	"github.com/dmarkov/finsight/internal/export"
)

// transactionJSON is the wire shape of one transaction. Amounts travel as
// strings so the UI never loses cents to float rounding.
type transactionJSON struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionJSON(t domain.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Date:        t.Date.Format(domain.DateFormat),
		Type:        string(t.Type),
		Description: t.Description,
		Amount:      t.Amount.StringFixed(2),
		CreatedAt:   t.CreatedAt,
	}
}

func toTransactionList(txs []domain.Transaction) []transactionJSON {
	list := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		list = append(list, toTransactionJSON(t))
	}
	return list
}

// ListTransactions handles GET /api/transactions
func (a *API) ListTransactions(w http.ResponseWriter, r *http.Request) {
	_, owner := userID(r)
	txs, err := a.manager.GetTransactions(r.Context(), owner)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": toTransactionList(txs),
		"count":        len(txs),
	})
}

// AddTransaction handles POST /api/transactions
func (a *API) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var payload domain.TransactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, owner := userID(r)
	id, err := a.manager.AddTransaction(r.Context(), payload, owner)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (a *API) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, owner := userID(r)
	if err := a.manager.UpdateTransactionField(r.Context(), id, req.Field, req.Value, owner); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (a *API) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	_, owner := userID(r)
	if err := a.manager.DeleteTransaction(r.Context(), id, owner); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// BatchDelete handles POST /api/transactions/batch-delete. The response
// carries one result per id; mixed outcomes are expected and the status is
// 200 regardless.
func (a *API) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	_, owner := userID(r)
	results := a.manager.DeleteTransactions(r.Context(), req.IDs, owner)

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// DeleteRows handles POST /api/transactions/delete-rows. Row numbers are a
// UI convenience: 1-based positions in the currently displayed sorted list.
// They are resolved to surrogate ids against a fresh listing inside this one
// request and never travel further down.
func (a *API) DeleteRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows []int `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "rows must not be empty")
		return
	}

	_, owner := userID(r)
	txs, err := a.manager.GetTransactions(r.Context(), owner)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	ids := make([]int64, 0, len(req.Rows))
	for _, row := range req.Rows {
		if row < 1 || row > len(txs) {
			middleware.WriteError(w, http.StatusBadRequest, "row number out of range")
			return
		}
		ids = append(ids, txs[row-1].ID)
	}

	results := a.manager.DeleteTransactions(r.Context(), ids, owner)

	a.hub.Broadcast("transactions_changed")
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// FilterTransactions handles GET /api/transactions/filter?column=...&value=...
func (a *API) FilterTransactions(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("column")
	value := r.URL.Query().Get("value")

	_, owner := userID(r)
	txs, err := a.manager.FilterTransactions(r.Context(), column, value, owner)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": toTransactionList(txs),
		"count":        len(txs),
	})
}

// Summary handles GET /api/summary
func (a *API) Summary(w http.ResponseWriter, r *http.Request) {
	_, owner := userID(r)
	stats, err := a.manager.GetSummaryStats(r.Context(), owner)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to compute summary")
		middleware.WriteDomainError(w, err)
		return
	}

	breakdown := make(map[string]string, len(stats.MonthlyBreakdown))
	for month, amount := range stats.MonthlyBreakdown {
		breakdown[month] = amount.StringFixed(2)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_expenses":      stats.TotalExpenses.StringFixed(2),
		"total_subscriptions": stats.TotalSubscriptions.StringFixed(2),
		"current_balance":     stats.CurrentBalance.StringFixed(2),
		"monthly_breakdown":   breakdown,
	})
}

// ExportTransactions handles GET /api/transactions/export
func (a *API) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	_, owner := userID(r)
	txs, err := a.manager.GetTransactions(r.Context(), owner)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := export.Transactions(w, txs); err != nil {
		a.log.Error().Err(err).Msg("Failed to export transactions")
	}
}

// ExportSummary handles GET /api/summary/export
func (a *API) ExportSummary(w http.ResponseWriter, r *http.Request) {
	_, owner := userID(r)
	stats, err := a.manager.GetSummaryStats(r.Context(), owner)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="summary.csv"`)
	if err := export.MonthlyBreakdown(w, stats.MonthlyBreakdown); err != nil {
		a.log.Error().Err(err).Msg("Failed to export summary")
	}
}
