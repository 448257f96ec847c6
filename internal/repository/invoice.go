package repository

import (
	"context"

	"billing/internal/domain"
)

// InvoiceRepository is the invoice state store. Every status change it performs is a
// conditional update on the current status, executed atomically by the backing store.
type InvoiceRepository interface {
	// Create persists a new invoice and assigns its ID when the store generates one.
	Create(ctx context.Context, invoice *domain.Invoice) error

	// GetByID retrieves an invoice by ID.
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)

	// FetchPendingPage returns up to limit PENDING invoices with ID > afterID, ascending by ID.
	FetchPendingPage(ctx context.Context, afterID int64, limit int) ([]*domain.Invoice, error)

	// Transition moves the invoice from expected to next.
	// Returns a *StateConflictError when the current status is not expected.
	Transition(ctx context.Context, id int64, expected, next domain.InvoiceStatus) (*domain.Invoice, error)

	// FailPayment moves the invoice from STARTED_PAYMENT to FAILED_PAYMENT and appends
	// the failed billing record in the same atomic operation.
	FailPayment(ctx context.Context, id int64, record *domain.FailedBilling) (*domain.Invoice, error)

	// ForceRequeue moves a FAILED_PAYMENT or STARTED_PAYMENT invoice back to PENDING.
	ForceRequeue(ctx context.Context, id int64) (*domain.Invoice, error)
}
