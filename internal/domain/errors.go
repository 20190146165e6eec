package domain

import "fmt"

// ValidationError reports a bad field value or shape. It is never retried
// and always names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError reports a connectivity or other transient store failure after
// retries were exhausted. It wraps the last underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError reports that an id or criteria resolved to zero rows.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Entity)
}

// PermissionError reports a sharing or partnership access denial.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// LowConfidenceMatchError reports that fuzzy transaction matching found no
// candidate above the confidence threshold. The caller should retry with
// id-based addressing instead.
type LowConfidenceMatchError struct {
	Confidence float64
}

func (e *LowConfidenceMatchError) Error() string {
	return fmt.Sprintf("no matching transaction (best confidence %.2f); use the transaction id instead", e.Confidence)
}
