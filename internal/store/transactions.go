package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = "id, date, type, description, amount, user_id, created_at"

// updatableColumns is the fixed allow-list of transaction fields that may be
// changed through UpdateTransaction. Field names are mapped to columns here
// and nowhere else; nothing caller-supplied is ever interpolated into SQL.
var updatableColumns = map[string]string{
	"date":        "date",
	"type":        "type",
	"amount":      "amount",
	"description": "description",
}

// AddTransaction inserts one transaction and returns its id.
func (s *Store) AddTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	var id int64
	err := s.withRetry(ctx, "add transaction", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO transactions (date, type, description, amount, user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			t.Date, t.Type, t.Description, t.Amount, t.OwnerID).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("AddTransaction: %w", err)
	}
	return id, nil
}

// GetTransactions returns all transactions, newest first (date, then
// creation time, then id). A nil ownerID returns every row.
func (s *Store) GetTransactions(ctx context.Context, ownerID *int64) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	args := []any{}
	if ownerID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC`

	var txs []domain.Transaction
	err := s.withRetry(ctx, "get transactions", func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		txs, err = scanTransactions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: %w", err)
	}
	return txs, nil
}

// TransactionsInDateRange returns transactions with a date in [from, to],
// newest first. Used by fuzzy command matching to build the candidate set.
func (s *Store) TransactionsInDateRange(ctx context.Context, ownerID *int64, from, to time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE date >= $1 AND date <= $2`
	args := []any{from, to}
	if ownerID != nil {
		query += ` AND user_id = $3`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC`

	var txs []domain.Transaction
	err := s.withRetry(ctx, "transactions in range", func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		txs, err = scanTransactions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("TransactionsInDateRange: %w", err)
	}
	return txs, nil
}

// FilterTransactions returns transactions matching a single-column filter.
//
// For the amount column the value must parse as a number and is matched
// exactly; an unparsable value returns an empty list rather than an error so
// a half-typed filter never breaks the dashboard. For type and description
// the value is split on commas and each token becomes a case-insensitive
// substring match, combined with OR.
func (s *Store) FilterTransactions(ctx context.Context, column domain.FilterColumn, value string, ownerID *int64) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []any{}

	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}

	switch column {
	case domain.FilterByAmount:
		amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return []domain.Transaction{}, nil
		}
		args = append(args, decimal.NewFromFloat(amount))
		query += fmt.Sprintf(` AND amount = $%d`, len(args))
	case domain.FilterByType, domain.FilterByDescription:
		var terms []string
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			args = append(args, "%"+token+"%")
			terms = append(terms, fmt.Sprintf(`LOWER(%s) LIKE LOWER($%d)`, column, len(args)))
		}
		if len(terms) > 0 {
			query += ` AND (` + strings.Join(terms, " OR ") + `)`
		}
	default:
		return nil, &domain.ValidationError{Field: "filter_column", Reason: fmt.Sprintf("unknown column %q", column)}
	}

	query += ` ORDER BY date DESC, created_at DESC, id DESC`

	var txs []domain.Transaction
	err := s.withRetry(ctx, "filter transactions", func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		txs, err = scanTransactions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("FilterTransactions: %w", err)
	}
	return txs, nil
}

// GetBalance returns sum(income) - sum(expense) - sum(subscription), scoped
// by owner when given. Zero for an empty table.
func (s *Store) GetBalance(ctx context.Context, ownerID *int64) (decimal.Decimal, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0) -
			COALESCE(SUM(CASE WHEN type IN ('expense', 'subscription') THEN amount ELSE 0 END), 0)
		FROM transactions`
	args := []any{}
	if ownerID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *ownerID)
	}

	var balance decimal.Decimal
	err := s.withRetry(ctx, "get balance", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, query, args...).Scan(&balance)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("GetBalance: %w", err)
	}
	return balance, nil
}

// UpdateTransaction sets a single allow-listed field on one transaction.
// A non-nil ownerID restricts the update to that owner's rows, so a matched
// id belonging to someone else behaves like a missing row. Returns false if
// no row matched.
func (s *Store) UpdateTransaction(ctx context.Context, id int64, field string, value any, ownerID *int64) (bool, error) {
	column, ok := updatableColumns[field]
	if !ok {
		return false, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("%q is not an updatable field", field)}
	}

	query := fmt.Sprintf(`UPDATE transactions SET %s = $1 WHERE id = $2`, column)
	args := []any{value, id}
	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}

	var matched bool
	err := s.withRetry(ctx, "update transaction", func(ctx context.Context, conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		matched = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("UpdateTransaction: %w", err)
	}
	return matched, nil
}

// DeleteTransaction removes one transaction by id, scoped to ownerID when it
// is non-nil. Returns false if no row matched.
func (s *Store) DeleteTransaction(ctx context.Context, id int64, ownerID *int64) (bool, error) {
	query := `DELETE FROM transactions WHERE id = $1`
	args := []any{id}
	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}

	var deleted bool
	err := s.withRetry(ctx, "delete transaction", func(ctx context.Context, conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("DeleteTransaction: %w", err)
	}
	return deleted, nil
}

// LatestTransactionIDs returns transaction ids newest-insertion-first
// (creation time, then id). limit <= 0 returns all ids. Deletion scopes like
// last_n and all_except_last_n are resolved against this ordering.
func (s *Store) LatestTransactionIDs(ctx context.Context, ownerID *int64, limit int) ([]int64, error) {
	query := `SELECT id FROM transactions`
	args := []any{}
	if ownerID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	var ids []int64
	err := s.withRetry(ctx, "latest transaction ids", func(ctx context.Context, conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("LatestTransactionIDs: %w", err)
	}
	return ids, nil
}

func scanTransaction(row pgx.Row, t *domain.Transaction) error {
	return row.Scan(&t.ID, &t.Date, &t.Type, &t.Description, &t.Amount, &t.OwnerID, &t.CreatedAt)
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
