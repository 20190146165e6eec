package manager

import (
	"context"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// GetSummaryStats computes the dashboard aggregates. The monthly breakdown
// groups by the calendar month of the transaction date, not the creation
// time, and sums signed amounts (income positive, spending negative).
func (m *Manager) GetSummaryStats(ctx context.Context, ownerID *int64) (*domain.SummaryStats, error) {
	txs, err := m.store.GetTransactions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	balance, err := m.store.GetBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	stats := &domain.SummaryStats{
		CurrentBalance:   balance,
		MonthlyBreakdown: make(map[string]decimal.Decimal),
	}
	for _, t := range txs {
		switch t.Type {
		case domain.TypeExpense:
			stats.TotalExpenses = stats.TotalExpenses.Add(t.Amount)
		case domain.TypeSubscription:
			stats.TotalSubscriptions = stats.TotalSubscriptions.Add(t.Amount)
		}

		month := t.Date.Format("2006-01")
		stats.MonthlyBreakdown[month] = stats.MonthlyBreakdown[month].Add(t.SignedAmount())
	}
	return stats, nil
}
