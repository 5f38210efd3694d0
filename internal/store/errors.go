package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors (e.g., ErrTenantNotFound, ErrJobNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a task with an ID already admitted).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrConflict is returned when a conditional update finds the row in a
	// different state than expected. Callers must treat this as a rejected
	// write, never as a partial success.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrTenantNotFound indicates that the requested tenant does not exist.
	ErrTenantNotFound = fmt.Errorf("%w: tenant", ErrNotFound)

	// ErrLedgerNotFound indicates that the tenant has no credit ledger row.
	ErrLedgerNotFound = fmt.Errorf("%w: credit ledger", ErrNotFound)

	// ErrJobNotFound indicates that the requested job does not exist.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrItemNotFound indicates that the requested item does not exist.
	ErrItemNotFound = fmt.Errorf("%w: item", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrDuplicateTask indicates that a task with the same ID is already
	// queued or in flight.
	ErrDuplicateTask = fmt.Errorf("%w: task", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "job", "item")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
