package repository

import (
	"context"

	"billing/internal/domain"
)

// AuditLog is the append-only, hash-chained audit trail of payment attempts.
type AuditLog interface {
	// Append seals the event against the invoice's latest event and stores it.
	// ID and hashes are filled in on success.
	Append(ctx context.Context, event *domain.AuditEvent) error

	// ListByInvoice returns the invoice's events in append order.
	ListByInvoice(ctx context.Context, invoiceID int64) ([]domain.AuditEvent, error)
}
