package manager

import (
	"context"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is the slice of the persistent store the manager needs. The Postgres
// implementation lives in internal/store; tests substitute a mock.
type Store interface {
	AddTransaction(ctx context.Context, t domain.Transaction) (int64, error)
	GetTransactions(ctx context.Context, ownerID *int64) ([]domain.Transaction, error)
	TransactionsInDateRange(ctx context.Context, ownerID *int64, from, to time.Time) ([]domain.Transaction, error)
	FilterTransactions(ctx context.Context, column domain.FilterColumn, value string, ownerID *int64) ([]domain.Transaction, error)
	GetBalance(ctx context.Context, ownerID *int64) (decimal.Decimal, error)
	UpdateTransaction(ctx context.Context, id int64, field string, value any, ownerID *int64) (bool, error)
	DeleteTransaction(ctx context.Context, id int64, ownerID *int64) (bool, error)
	LatestTransactionIDs(ctx context.Context, ownerID *int64, limit int) ([]int64, error)
}
