package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"billing/internal/domain"
	"billing/internal/repository"
)

// FailedBillingRepository is a PostgreSQL implementation of repository.FailedBillingRepository.
type FailedBillingRepository struct {
	q Querier
}

var _ repository.FailedBillingRepository = (*FailedBillingRepository)(nil)

// NewFailedBillingRepository creates a new PostgreSQL failed billing repository.
func NewFailedBillingRepository(db *sql.DB) *FailedBillingRepository {
	return &FailedBillingRepository{q: db}
}

// NewFailedBillingRepositoryWithTx creates a failed billing repository using a transaction.
func NewFailedBillingRepositoryWithTx(tx *sql.Tx) *FailedBillingRepository {
	return &FailedBillingRepository{q: tx}
}

// ListByInvoice returns the failures of an invoice ordered by timestamp.
func (r *FailedBillingRepository) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.FailedBilling, error) {
	query := `
		SELECT id, invoice_id, reason, message, occurred_at
		FROM failed_billings
		WHERE invoice_id = $1
		ORDER BY occurred_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := []*domain.FailedBilling{}
	for rows.Next() {
		var fb domain.FailedBilling
		if err := rows.Scan(&fb.ID, &fb.InvoiceID, &fb.Reason, &fb.Message, &fb.Timestamp); err != nil {
			return nil, err
		}
		failures = append(failures, &fb)
	}
	return failures, rows.Err()
}

func insertFailedBilling(ctx context.Context, q Querier, invoiceID int64, record *domain.FailedBilling) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.InvoiceID = invoiceID

	query := `
		INSERT INTO failed_billings (id, invoice_id, reason, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.ExecContext(ctx, query,
		record.ID,
		record.InvoiceID,
		record.Reason,
		record.Message,
		record.Timestamp.UTC(),
	)
	return err
}
