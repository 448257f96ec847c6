package repository

import (
	"errors"
	"fmt"

	"billing/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStateConflict is returned when a conditional status transition finds the
	// invoice in a status other than the expected one.
	ErrStateConflict = errors.New("invoice state conflict")

	// ErrInvalidTransition is returned when a caller asks for an edge outside the payment graph.
	ErrInvalidTransition = errors.New("invalid invoice status transition")
)

// StateConflictError carries the details of a failed conditional transition.
// It matches ErrStateConflict with errors.Is.
type StateConflictError struct {
	InvoiceID int64
	Expected  []domain.InvoiceStatus
	Actual    domain.InvoiceStatus
	Target    domain.InvoiceStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("invoice %d: expected status %v to move to %s, found %s",
		e.InvoiceID, e.Expected, e.Target, e.Actual)
}

// Is makes errors.Is(err, ErrStateConflict) true.
func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

// NewStateConflict builds a StateConflictError for a single expected status.
func NewStateConflict(id int64, expected, actual, target domain.InvoiceStatus) *StateConflictError {
	return &StateConflictError{
		InvoiceID: id,
		Expected:  []domain.InvoiceStatus{expected},
		Actual:    actual,
		Target:    target,
	}
}

// ValidateTransition rejects edges outside the forward payment graph before any store is touched.
func ValidateTransition(expected, next domain.InvoiceStatus) error {
	if !domain.CanTransition(expected, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next)
	}
	return nil
}
