package repository

import (
	"context"

	"billing/internal/domain"
)

// FailedBillingRepository reads the append-only failed billing history.
// Records are written only through InvoiceRepository.FailPayment.
type FailedBillingRepository interface {
	// ListByInvoice returns the failures of an invoice ordered by timestamp.
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.FailedBilling, error)
}
