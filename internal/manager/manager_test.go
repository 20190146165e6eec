package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// mockStore is an in-memory Store for manager tests.
type mockStore struct {
	txs    map[int64]domain.Transaction
	order  []int64 // insertion order, oldest first
	nextID int64

	addErr error
}

func newMockStore() *mockStore {
	return &mockStore{txs: make(map[int64]domain.Transaction)}
}

func (m *mockStore) AddTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	if m.addErr != nil {
		return 0, m.addErr
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	m.txs[t.ID] = t
	m.order = append(m.order, t.ID)
	return t.ID, nil
}

func (m *mockStore) GetTransactions(ctx context.Context, ownerID *int64) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, t := range m.txs {
		txs = append(txs, t)
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

func (m *mockStore) TransactionsInDateRange(ctx context.Context, ownerID *int64, from, to time.Time) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, t := range m.txs {
		if !t.Date.Before(from) && !t.Date.After(to) {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

func (m *mockStore) FilterTransactions(ctx context.Context, column domain.FilterColumn, value string, ownerID *int64) ([]domain.Transaction, error) {
	return nil, nil
}

func (m *mockStore) GetBalance(ctx context.Context, ownerID *int64) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, t := range m.txs {
		balance = balance.Add(t.SignedAmount())
	}
	return balance, nil
}

func (m *mockStore) ownedBy(t domain.Transaction, ownerID *int64) bool {
	if ownerID == nil {
		return true
	}
	return t.OwnerID != nil && *t.OwnerID == *ownerID
}

func (m *mockStore) UpdateTransaction(ctx context.Context, id int64, field string, value any, ownerID *int64) (bool, error) {
	t, ok := m.txs[id]
	if !ok || !m.ownedBy(t, ownerID) {
		return false, nil
	}
	switch field {
	case "date":
		t.Date = value.(time.Time)
	case "type":
		t.Type = value.(domain.TransactionType)
	case "amount":
		t.Amount = value.(decimal.Decimal)
	case "description":
		t.Description = value.(string)
	default:
		return false, fmt.Errorf("unexpected field %q reached the store", field)
	}
	m.txs[id] = t
	return true, nil
}

func (m *mockStore) DeleteTransaction(ctx context.Context, id int64, ownerID *int64) (bool, error) {
	t, ok := m.txs[id]
	if !ok || !m.ownedBy(t, ownerID) {
		return false, nil
	}
	delete(m.txs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *mockStore) LatestTransactionIDs(ctx context.Context, ownerID *int64, limit int) ([]int64, error) {
	ids := make([]int64, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		ids = append(ids, m.order[i])
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

func newTestManager() (*Manager, *mockStore) {
	st := newMockStore()
	return New(st, zerolog.Nop()), st
}

func payload(date, typ, desc, amount string) domain.TransactionPayload {
	return domain.TransactionPayload{Date: date, Type: typ, Description: desc, Amount: amount}
}

func TestAddTransactionValid(t *testing.T) {
	m, st := newTestManager()

	id, err := m.AddTransaction(context.Background(), payload("2024-01-31", "Expense", "coffee beans", "4.50"), nil)
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	saved := st.txs[id]
	if saved.Type != domain.TypeExpense {
		t.Errorf("type = %q, want expense", saved.Type)
	}
	if saved.Date.Format(domain.DateFormat) != "2024-01-31" {
		t.Errorf("date = %s, want 2024-01-31", saved.Date.Format(domain.DateFormat))
	}
	if !saved.Amount.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("amount = %s, want 4.50", saved.Amount)
	}
	if saved.Description != "coffee beans" {
		t.Errorf("description = %q, want coffee beans", saved.Description)
	}
}

func TestAddTransactionValidation(t *testing.T) {
	tests := []struct {
		name      string
		payload   domain.TransactionPayload
		wantField string
	}{
		{"unknown type", payload("2024-01-01", "loan", "car", "100"), "type"},
		{"bad date", payload("01/02/2024", "expense", "gas", "40"), "date"},
		{"negative amount", payload("2024-01-01", "expense", "gas", "-40"), "amount"},
		{"unparsable amount", payload("2024-01-01", "expense", "gas", "forty"), "amount"},
		{"empty description", payload("2024-01-01", "expense", "   ", "40"), "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st := newTestManager()

			_, err := m.AddTransaction(context.Background(), tt.payload, nil)
			var invalid *domain.ValidationError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("field = %q, want %q", invalid.Field, tt.wantField)
			}
			if len(st.txs) != 0 {
				t.Errorf("store has %d rows, want 0", len(st.txs))
			}
		})
	}
}

func TestUpdateTransactionField(t *testing.T) {
	m, st := newTestManager()
	id, _ := m.AddTransaction(context.Background(), payload("2024-03-10", "income", "salary", "1000"), nil)

	if err := m.UpdateTransactionField(context.Background(), id, "amount", "1200.50", nil); err != nil {
		t.Fatalf("UpdateTransactionField failed: %v", err)
	}

	saved := st.txs[id]
	if !saved.Amount.Equal(decimal.RequireFromString("1200.50")) {
		t.Errorf("amount = %s, want 1200.50", saved.Amount)
	}
	// Other fields untouched.
	if saved.Description != "salary" || saved.Type != domain.TypeIncome {
		t.Errorf("unrelated fields changed: %+v", saved)
	}
}

func TestUpdateTransactionFieldRejectsUnknownField(t *testing.T) {
	m, _ := newTestManager()
	id, _ := m.AddTransaction(context.Background(), payload("2024-03-10", "income", "salary", "1000"), nil)

	err := m.UpdateTransactionField(context.Background(), id, "user_id", "2", nil)
	var invalid *domain.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpdateTransactionFieldNotFound(t *testing.T) {
	m, _ := newTestManager()

	err := m.UpdateTransactionField(context.Background(), 999, "amount", "10", nil)
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	m, _ := newTestManager()

	err := m.DeleteTransaction(context.Background(), 42, nil)
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeleteTransactionsBestEffort(t *testing.T) {
	m, st := newTestManager()
	id1, _ := m.AddTransaction(context.Background(), payload("2024-01-01", "expense", "gas", "40"), nil)
	id2, _ := m.AddTransaction(context.Background(), payload("2024-01-02", "expense", "food", "20"), nil)

	results := m.DeleteTransactions(context.Background(), []int64{id1, id2, 999}, nil)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Success || !results[1].Success {
		t.Errorf("expected ids %d and %d to delete, got %+v", id1, id2, results)
	}
	if results[2].Success {
		t.Error("expected id 999 to fail")
	}
	if results[2].Error == "" {
		t.Error("expected a descriptive error for id 999")
	}
	if len(st.txs) != 0 {
		t.Errorf("store has %d rows after batch delete, want 0", len(st.txs))
	}
}

func TestMutationsScopedToOwner(t *testing.T) {
	m, st := newTestManager()
	alice, bob := int64(1), int64(2)
	id, err := m.AddTransaction(context.Background(), payload("2024-05-01", "expense", "coffee", "4.50"), &alice)
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	var notFound *domain.NotFoundError

	err = m.UpdateTransactionField(context.Background(), id, "amount", "9.99", &bob)
	if !errors.As(err, &notFound) {
		t.Fatalf("update as other owner: err = %v, want NotFoundError", err)
	}
	if !st.txs[id].Amount.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("amount changed across owners: %s", st.txs[id].Amount)
	}

	err = m.DeleteTransaction(context.Background(), id, &bob)
	if !errors.As(err, &notFound) {
		t.Fatalf("delete as other owner: err = %v, want NotFoundError", err)
	}
	if len(st.txs) != 1 {
		t.Fatalf("row deleted across owners")
	}

	if err := m.DeleteTransaction(context.Background(), id, &alice); err != nil {
		t.Fatalf("delete as owner failed: %v", err)
	}
}

func TestGetSummaryStats(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	m.AddTransaction(ctx, payload("2024-01-31", "income", "salary", "100"), nil)
	m.AddTransaction(ctx, payload("2024-01-15", "expense", "gas", "30"), nil)
	m.AddTransaction(ctx, payload("2024-02-01", "subscription", "netflix", "20"), nil)

	stats, err := m.GetSummaryStats(ctx, nil)
	if err != nil {
		t.Fatalf("GetSummaryStats failed: %v", err)
	}

	if !stats.CurrentBalance.Equal(decimal.RequireFromString("50")) {
		t.Errorf("balance = %s, want 50", stats.CurrentBalance)
	}
	if !stats.TotalExpenses.Equal(decimal.RequireFromString("30")) {
		t.Errorf("total expenses = %s, want 30", stats.TotalExpenses)
	}
	if !stats.TotalSubscriptions.Equal(decimal.RequireFromString("20")) {
		t.Errorf("total subscriptions = %s, want 20", stats.TotalSubscriptions)
	}

	// Grouped by transaction date month, not creation time.
	jan := stats.MonthlyBreakdown["2024-01"]
	if !jan.Equal(decimal.RequireFromString("70")) {
		t.Errorf("2024-01 = %s, want 70", jan)
	}
	feb := stats.MonthlyBreakdown["2024-02"]
	if !feb.Equal(decimal.RequireFromString("-20")) {
		t.Errorf("2024-02 = %s, want -20", feb)
	}
}
