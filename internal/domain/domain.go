package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction. The set is closed; anything else
// is rejected at the manager boundary and by a CHECK constraint in the schema.
type TransactionType string

const (
	TypeIncome       TransactionType = "income"
	TypeExpense      TransactionType = "expense"
	TypeSubscription TransactionType = "subscription"
)

// ParseTransactionType normalizes and validates a raw type value.
func ParseTransactionType(raw string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TypeIncome, TypeExpense, TypeSubscription:
		return t, nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not one of income, expense, subscription", raw)}
}

// DateFormat is the wire format for transaction dates (ISO 8601 date).
const DateFormat = "2006-01-02"

// Transaction is one financial event record. Amount is always non-negative;
// the sign is implied by Type (income adds, expense/subscription subtract).
type Transaction struct {
	ID          int64
	Date        time.Time
	Type        TransactionType
	Description string
	Amount      decimal.Decimal
	OwnerID     *int64
	CreatedAt   time.Time
}

// SignedAmount returns the amount with the sign implied by the type.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Setting is one scalar configuration value, e.g. the exchange rate.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingExchangeRate holds the multiplier applied to amounts reported in a
// foreign currency by the extraction model.
const SettingExchangeRate = "exchange_rate"

// FilterColumn names a transaction column a saved filter may match against.
type FilterColumn string

const (
	FilterByType        FilterColumn = "type"
	FilterByDescription FilterColumn = "description"
	FilterByAmount      FilterColumn = "amount"
)

// ParseFilterColumn validates a raw filter column name.
func ParseFilterColumn(raw string) (FilterColumn, error) {
	c := FilterColumn(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case FilterByType, FilterByDescription, FilterByAmount:
		return c, nil
	}
	return "", &ValidationError{Field: "filter_column", Reason: fmt.Sprintf("%q is not one of type, description, amount", raw)}
}

// SavedFilter is a named, persisted search predicate over transactions.
type SavedFilter struct {
	ID       int64
	Name     string
	Column   FilterColumn
	Text     string
	OwnerID  *int64
	IsShared bool
}

// ShareStatus is the state of a sharing or partnership invitation.
// pending transitions to accepted or rejected; both are terminal.
type ShareStatus string

const (
	StatusPending  ShareStatus = "pending"
	StatusAccepted ShareStatus = "accepted"
	StatusRejected ShareStatus = "rejected"
)

// FilterShare is an invitation granting one user read access to another
// user's saved filter.
type FilterShare struct {
	FilterID     int64
	SharedWithID int64
	Status       ShareStatus
}

// SharedFilter is a saved filter as seen by the user it was shared with.
type SharedFilter struct {
	SavedFilter
	OwnerUsername string
	Status        ShareStatus
}

// Partnership is a mutual relationship between two users. Only an accepted
// partnership permits filter sharing between the pair.
type Partnership struct {
	ID        int64
	UserID    int64
	PartnerID int64
	Status    ShareStatus
}

// PartnershipView is a partnership annotated with both usernames for the
// partner listing.
type PartnershipView struct {
	Partnership
	Username        string
	PartnerUsername string
}

// User is one account. PasswordHash is a bcrypt hash, never the password.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// SummaryStats aggregates the transaction table for the dashboard header.
// MonthlyBreakdown maps "YYYY-MM" (by transaction date, not creation time)
// to the signed sum for that month.
type SummaryStats struct {
	TotalExpenses      decimal.Decimal
	TotalSubscriptions decimal.Decimal
	CurrentBalance     decimal.Decimal
	MonthlyBreakdown   map[string]decimal.Decimal
}
