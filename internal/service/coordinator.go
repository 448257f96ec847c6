package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"billing/internal/domain"
	"billing/internal/gateway"
	"billing/internal/repository"
)

// PaymentCoordinator moves a single invoice through one payment attempt.
//
// The steps are not one database transaction: the gateway is called between
// two independent conditional transitions so no transaction is held open
// across the network call. A crash between the two leaves the invoice in
// STARTED_PAYMENT until an operator requeues it.
type PaymentCoordinator struct {
	invoices repository.InvoiceRepository
	audit    repository.AuditLog
	gateway  gateway.Gateway
	clock    clock.PassiveClock
	logger   *zap.Logger
}

// NewPaymentCoordinator creates a new PaymentCoordinator.
func NewPaymentCoordinator(
	invoices repository.InvoiceRepository,
	audit repository.AuditLog,
	gw gateway.Gateway,
	clk clock.PassiveClock,
	logger *zap.Logger,
) *PaymentCoordinator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentCoordinator{
		invoices: invoices,
		audit:    audit,
		gateway:  gw,
		clock:    clk,
		logger:   logger,
	}
}

// Attempt charges a PENDING invoice once. It returns true only when the charge
// succeeded and the invoice is PAID. A repository.ErrStateConflict error means
// another attempt owns the invoice; nothing was charged or audited.
func (c *PaymentCoordinator) Attempt(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	logger := c.logger.With(zap.Int64("invoice_id", invoice.ID))

	started, err := c.invoices.Transition(ctx, invoice.ID, domain.InvoiceStatusPending, domain.InvoiceStatusStartedPayment)
	if err != nil {
		return false, fmt.Errorf("start payment of invoice %d: %w", invoice.ID, err)
	}

	// Past this point the invoice is ours; finish the bookkeeping even if the caller goes away.
	bookkeeping := context.WithoutCancel(ctx)

	if err := c.record(bookkeeping, invoice.ID, domain.AuditEventStarted, Outcome{}); err != nil {
		// Nothing has been charged yet, so hand the invoice back to the next pass.
		if _, rqErr := c.invoices.ForceRequeue(bookkeeping, invoice.ID); rqErr != nil {
			logger.Error("invoice left in STARTED_PAYMENT after audit failure", zap.Error(rqErr))
		}
		return false, fmt.Errorf("audit start of invoice %d: %w", invoice.ID, err)
	}

	outcome := ClassifyCharge(c.gateway.Charge(ctx, started))
	logger = logger.With(zap.Stringer("outcome", outcome.Kind))

	if outcome.Succeeded() {
		if _, err := c.invoices.Transition(bookkeeping, invoice.ID, domain.InvoiceStatusStartedPayment, domain.InvoiceStatusPaid); err != nil {
			logger.Error("charged invoice could not be marked paid", zap.Error(err))
			return false, fmt.Errorf("%w: invoice %d: %w", ErrPaymentNotRecorded, invoice.ID, err)
		}
		if err := c.record(bookkeeping, invoice.ID, domain.AuditEventCompleted, outcome); err != nil {
			return true, fmt.Errorf("audit completion of invoice %d: %w", invoice.ID, err)
		}
		logger.Info("invoice paid")
		return true, nil
	}

	failure := &domain.FailedBilling{
		ID:        uuid.NewString(),
		InvoiceID: invoice.ID,
		Reason:    outcome.Reason(),
		Message:   outcome.Message,
		Timestamp: c.clock.Now(),
	}
	if _, err := c.invoices.FailPayment(bookkeeping, invoice.ID, failure); err != nil {
		logger.Error("failed charge could not be recorded", zap.Error(err))
		return false, fmt.Errorf("%w: invoice %d: %w", ErrPaymentNotRecorded, invoice.ID, err)
	}
	if err := c.record(bookkeeping, invoice.ID, domain.AuditEventFailed, outcome); err != nil {
		return false, fmt.Errorf("audit failure of invoice %d: %w", invoice.ID, err)
	}
	logger.Warn("invoice payment failed",
		zap.String("reason", string(failure.Reason)),
		zap.String("message", failure.Message),
	)
	return false, nil
}

func (c *PaymentCoordinator) record(ctx context.Context, invoiceID int64, kind domain.AuditEventKind, outcome Outcome) error {
	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		Kind:      kind,
		Reason:    outcome.Reason(),
		Message:   outcome.Message,
		At:        c.clock.Now(),
	}
	return c.audit.Append(ctx, event)
}

// IsSkip reports whether an Attempt error only means another attempt owns the invoice.
func IsSkip(err error) bool {
	return errors.Is(err, repository.ErrStateConflict)
}
