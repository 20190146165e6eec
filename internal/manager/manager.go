// Package manager is the single choke point between untrusted external input
// (UI payloads, extraction adapter output) and the persistent store. Every
// field of every payload is parsed and validated here before anything is
// written; parse failures surface as domain.ValidationError naming the
// offending field, with no partial writes.
package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Manager validates and routes transaction commands.
type Manager struct {
	store Store
	log   zerolog.Logger
}

// New creates a Manager on top of the given store.
func New(store Store, log zerolog.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// AddTransaction validates a payload and persists it, returning the new id.
func (m *Manager) AddTransaction(ctx context.Context, payload domain.TransactionPayload, ownerID *int64) (int64, error) {
	t, err := parsePayload(payload)
	if err != nil {
		return 0, err
	}
	t.OwnerID = ownerID

	id, err := m.store.AddTransaction(ctx, t)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int64("id", id).Str("type", string(t.Type)).Str("date", t.Date.Format(domain.DateFormat)).Msg("transaction added")
	return id, nil
}

// UpdateTransactionField re-validates a single field using the same rules as
// AddTransaction and applies it. Unknown fields are rejected before the
// store is touched. With a non-nil ownerID, someone else's id reads as not
// found; existence is never leaked across owners.
func (m *Manager) UpdateTransactionField(ctx context.Context, id int64, field, value string, ownerID *int64) error {
	typed, err := parseField(field, value)
	if err != nil {
		return err
	}

	matched, err := m.store.UpdateTransaction(ctx, id, field, typed, ownerID)
	if err != nil {
		return err
	}
	if !matched {
		return &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	return nil
}

// DeleteTransaction removes one transaction, scoped to ownerID when it is
// non-nil. A missing or foreign id is a NotFoundError, never a silent
// success.
func (m *Manager) DeleteTransaction(ctx context.Context, id int64, ownerID *int64) error {
	deleted, err := m.store.DeleteTransaction(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	return nil
}

// DeleteResult is the outcome of one id within a batch delete.
type DeleteResult struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DeleteTransactions removes a batch of ids best-effort: each id is attempted
// independently and one failure does not abort the rest. Callers must
// inspect the per-id results.
func (m *Manager) DeleteTransactions(ctx context.Context, ids []int64, ownerID *int64) []DeleteResult {
	results := make([]DeleteResult, 0, len(ids))
	for _, id := range ids {
		r := DeleteResult{ID: id, Success: true}
		if err := m.DeleteTransaction(ctx, id, ownerID); err != nil {
			r.Success = false
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results
}

// GetTransactions returns the owner's transactions, newest first.
func (m *Manager) GetTransactions(ctx context.Context, ownerID *int64) ([]domain.Transaction, error) {
	return m.store.GetTransactions(ctx, ownerID)
}

// FilterTransactions returns transactions matching a single-column filter.
func (m *Manager) FilterTransactions(ctx context.Context, column, value string, ownerID *int64) ([]domain.Transaction, error) {
	col, err := domain.ParseFilterColumn(column)
	if err != nil {
		return nil, err
	}
	return m.store.FilterTransactions(ctx, col, value, ownerID)
}

// parsePayload turns an untrusted payload into a validated Transaction.
func parsePayload(p domain.TransactionPayload) (domain.Transaction, error) {
	var t domain.Transaction

	date, err := parseDate(p.Date)
	if err != nil {
		return t, err
	}
	typ, err := domain.ParseTransactionType(p.Type)
	if err != nil {
		return t, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return t, err
	}
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		return t, &domain.ValidationError{Field: "description", Reason: "must not be empty"}
	}

	return domain.Transaction{Date: date, Type: typ, Description: desc, Amount: amount}, nil
}

// parseField validates a single updatable field and returns the typed value
// to hand to the store.
func parseField(field, value string) (any, error) {
	switch field {
	case "date":
		return parseDate(value)
	case "type":
		return domain.ParseTransactionType(value)
	case "amount":
		return parseAmount(value)
	case "description":
		desc := strings.TrimSpace(value)
		if desc == "" {
			return nil, &domain.ValidationError{Field: "description", Reason: "must not be empty"}
		}
		return desc, nil
	default:
		return nil, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("%q is not an updatable field", field)}
	}
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(domain.DateFormat, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a valid YYYY-MM-DD date", raw)}
	}
	return date, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: "amount", Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	if amount.IsNegative() {
		return decimal.Zero, &domain.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	return amount, nil
}
