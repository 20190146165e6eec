// Package export renders transaction data as CSV for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// Transactions writes the transaction list as CSV with the fixed column
// order date, type, description, amount.
func Transactions(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"date", "type", "description", "amount"}); err != nil {
		return fmt.Errorf("export.Transactions: %w", err)
	}
	for _, t := range txs {
		record := []string{
			t.Date.Format(domain.DateFormat),
			string(t.Type),
			t.Description,
			t.Amount.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export.Transactions: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.Transactions: %w", err)
	}
	return nil
}

// MonthlyBreakdown writes the month → signed sum mapping as CSV, months
// ascending.
func MonthlyBreakdown(w io.Writer, breakdown map[string]decimal.Decimal) error {
	months := make([]string, 0, len(breakdown))
	for month := range breakdown {
		months = append(months, month)
	}
	sort.Strings(months)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"month", "amount"}); err != nil {
		return fmt.Errorf("export.MonthlyBreakdown: %w", err)
	}
	for _, month := range months {
		if err := cw.Write([]string{month, breakdown[month].StringFixed(2)}); err != nil {
			return fmt.Errorf("export.MonthlyBreakdown: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.MonthlyBreakdown: %w", err)
	}
	return nil
}
