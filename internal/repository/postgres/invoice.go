package postgres

import (
	"context"
	"database/sql"
	"errors"

	"billing/internal/domain"
	"billing/internal/repository"
)

// InvoiceRepository is a PostgreSQL implementation of repository.InvoiceRepository.
//
// Every status change is a single UPDATE conditioned on the current status,
// run in a serializable transaction.
type InvoiceRepository struct {
	tx txRunner
}

var _ repository.InvoiceRepository = (*InvoiceRepository)(nil)

// NewInvoiceRepository creates a new PostgreSQL invoice repository.
func NewInvoiceRepository(db *sql.DB, opts ...Option) *InvoiceRepository {
	return &InvoiceRepository{tx: newTxRunner(db, opts)}
}

// NewInvoiceRepositoryWithTx creates an invoice repository using a transaction.
func NewInvoiceRepositoryWithTx(tx *sql.Tx) *InvoiceRepository {
	return &InvoiceRepository{tx: newTxRunnerWithTx(tx)}
}

const invoiceColumns = `id, customer_id, amount_value, currency, status`

// Create persists a new invoice and sets its generated ID.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	query := `
		INSERT INTO invoices (customer_id, amount_value, currency, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	return r.tx.q.QueryRowContext(ctx, query,
		invoice.CustomerID,
		invoice.Amount.Value,
		invoice.Amount.Currency,
		invoice.Status,
	).Scan(&invoice.ID)
}

// GetByID retrieves an invoice by ID.
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	return getInvoice(ctx, r.tx.q, id)
}

// FetchPendingPage returns up to limit PENDING invoices with ID above afterID, in ID order.
func (r *InvoiceRepository) FetchPendingPage(ctx context.Context, afterID int64, limit int) ([]*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.tx.q.QueryContext(ctx, query, domain.InvoiceStatusPending, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := make([]*domain.Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, inv)
	}
	return page, rows.Err()
}

// Transition moves the invoice from expected to next if it is still in expected.
func (r *InvoiceRepository) Transition(ctx context.Context, id int64, expected, next domain.InvoiceStatus) (*domain.Invoice, error) {
	if err := repository.ValidateTransition(expected, next); err != nil {
		return nil, err
	}

	var updated *domain.Invoice
	err := r.tx.inTx(ctx, func(q Querier) error {
		var err error
		updated, err = compareAndSet(ctx, q, id, []domain.InvoiceStatus{expected}, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FailPayment moves STARTED_PAYMENT to FAILED_PAYMENT and records the failure
// in the same transaction.
func (r *InvoiceRepository) FailPayment(ctx context.Context, id int64, record *domain.FailedBilling) (*domain.Invoice, error) {
	var updated *domain.Invoice
	err := r.tx.inTx(ctx, func(q Querier) error {
		var err error
		updated, err = compareAndSet(ctx, q, id,
			[]domain.InvoiceStatus{domain.InvoiceStatusStartedPayment}, domain.InvoiceStatusFailedPayment)
		if err != nil {
			return err
		}
		return insertFailedBilling(ctx, q, id, record)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ForceRequeue moves a FAILED_PAYMENT or STARTED_PAYMENT invoice back to PENDING.
func (r *InvoiceRepository) ForceRequeue(ctx context.Context, id int64) (*domain.Invoice, error) {
	var updated *domain.Invoice
	err := r.tx.inTx(ctx, func(q Querier) error {
		var err error
		updated, err = compareAndSet(ctx, q, id, domain.RequeueableStatuses, domain.InvoiceStatusPending)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// compareAndSet updates the status only when it is one of expected. When no
// row changes it tells a missing invoice apart from a conflict.
func compareAndSet(ctx context.Context, q Querier, id int64, expected []domain.InvoiceStatus, next domain.InvoiceStatus) (*domain.Invoice, error) {
	var (
		result sql.Result
		err    error
	)
	switch len(expected) {
	case 1:
		result, err = q.ExecContext(ctx,
			`UPDATE invoices SET status = $1 WHERE id = $2 AND status = $3`,
			next, id, expected[0])
	case 2:
		result, err = q.ExecContext(ctx,
			`UPDATE invoices SET status = $1 WHERE id = $2 AND status IN ($3, $4)`,
			next, id, expected[0], expected[1])
	default:
		return nil, errors.New("postgres: unsupported number of expected statuses")
	}
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	current, err := getInvoice(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &repository.StateConflictError{
			InvoiceID: id,
			Expected:  expected,
			Actual:    current.Status,
			Target:    next,
		}
	}
	return current, nil
}

func getInvoice(ctx context.Context, q Querier, id int64) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.CustomerID,
		&inv.Amount.Value,
		&inv.Amount.Currency,
		&inv.Status,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
