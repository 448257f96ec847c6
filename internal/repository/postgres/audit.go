package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"billing/internal/domain"
	"billing/internal/repository"
)

// AuditLog stores the hash-chained audit trail in billing_audit_events.
// Reading the chain head and inserting the new event share a serializable
// transaction, so concurrent appends to one invoice cannot fork the chain.
type AuditLog struct {
	tx txRunner
}

var _ repository.AuditLog = (*AuditLog)(nil)

// NewAuditLog creates a new PostgreSQL audit log.
func NewAuditLog(db *sql.DB, opts ...Option) *AuditLog {
	return &AuditLog{tx: newTxRunner(db, opts)}
}

// Append seals the event against the invoice's latest event and stores it.
func (l *AuditLog) Append(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	return l.tx.inTx(ctx, func(q Querier) error {
		var prevHash string
		err := q.QueryRowContext(ctx, `
			SELECT hash FROM billing_audit_events
			WHERE invoice_id = $1
			ORDER BY seq DESC
			LIMIT 1
		`, event.InvoiceID).Scan(&prevHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		event.Seal(prevHash)
		_, err = q.ExecContext(ctx, `
			INSERT INTO billing_audit_events (id, invoice_id, kind, reason, message, occurred_at, prev_hash, hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			event.ID,
			event.InvoiceID,
			event.Kind,
			event.Reason,
			event.Message,
			event.At,
			event.PrevHash,
			event.Hash,
		)
		return err
	})
}

// ListByInvoice returns the invoice's events in append order.
func (l *AuditLog) ListByInvoice(ctx context.Context, invoiceID int64) ([]domain.AuditEvent, error) {
	rows, err := l.tx.q.QueryContext(ctx, `
		SELECT id, invoice_id, kind, reason, message, occurred_at, prev_hash, hash
		FROM billing_audit_events
		WHERE invoice_id = $1
		ORDER BY seq
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.InvoiceID, &e.Kind, &e.Reason, &e.Message, &e.At, &e.PrevHash, &e.Hash); err != nil {
			return nil, err
		}
		e.At = e.At.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
