package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"billing/internal/domain"
	"billing/internal/repository"
	"billing/internal/schedule"
)

// PassRunner runs one billing pass.
type PassRunner interface {
	RunPass(ctx context.Context, trigger Trigger) (PassSummary, error)
}

// PassHistory lists recently recorded pass summaries, newest first.
type PassHistory interface {
	Recent(ctx context.Context, limit int) ([]PassSummary, error)
}

// AuditTrail is an invoice's audit events with the result of verifying their hash chain.
type AuditTrail struct {
	InvoiceID   int64               `json:"invoice_id"`
	Events      []domain.AuditEvent `json:"events"`
	Verified    bool                `json:"verified"`
	VerifyError string              `json:"verify_error,omitempty"`
}

// BillingService is the operator-facing entry point: scheduled and forced
// passes, requeues and history.
type BillingService struct {
	runner   PassRunner
	invoices repository.InvoiceRepository
	failures repository.FailedBillingRepository
	audit    repository.AuditLog
	history  PassHistory
	clock    clock.Clock
	logger   *zap.Logger
}

// NewBillingService creates a new BillingService. history may be nil.
func NewBillingService(
	runner PassRunner,
	invoices repository.InvoiceRepository,
	failures repository.FailedBillingRepository,
	audit repository.AuditLog,
	history PassHistory,
	clk clock.Clock,
	logger *zap.Logger,
) *BillingService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		runner:   runner,
		invoices: invoices,
		failures: failures,
		audit:    audit,
		history:  history,
		clock:    clk,
		logger:   logger,
	}
}

// RunMonthly fires a billing pass at 00:00 on the first of every month until
// ctx is done. Triggers missed while the process was down are not replayed.
func (s *BillingService) RunMonthly(ctx context.Context) error {
	loop := schedule.NewLoop(s.clock, s.logger.Named("scheduler"))
	return loop.Run(ctx, schedule.MonthlyFrom(s.clock), func(ctx context.Context) error {
		_, err := s.runner.RunPass(ctx, TriggerScheduled)
		return err
	})
}

// UpcomingRuns returns the next n scheduled trigger instants.
func (s *BillingService) UpcomingRuns(n int) []time.Time {
	return schedule.Take(schedule.MonthlyFrom(s.clock), n)
}

// ForceRunNow runs a pass immediately. It may overlap a scheduled pass.
func (s *BillingService) ForceRunNow(ctx context.Context) (PassSummary, error) {
	s.logger.Info("operator forced billing pass")
	return s.runner.RunPass(ctx, TriggerManual)
}

// ForceRequeue moves a FAILED_PAYMENT or stuck STARTED_PAYMENT invoice back to
// PENDING so the next pass retries it.
func (s *BillingService) ForceRequeue(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInvoiceID, invoiceID)
	}

	invoice, err := s.invoices.ForceRequeue(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("requeue invoice %d: %w", invoiceID, err)
	}

	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		Kind:      domain.AuditEventRequeued,
		Message:   "requeued by operator",
		At:        s.clock.Now(),
	}
	if err := s.audit.Append(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("failed to audit requeue", zap.Int64("invoice_id", invoiceID), zap.Error(err))
	}

	s.logger.Info("invoice requeued", zap.Int64("invoice_id", invoiceID))
	return invoice, nil
}

// Invoice returns an invoice by ID.
func (s *BillingService) Invoice(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInvoiceID, invoiceID)
	}
	return s.invoices.GetByID(ctx, invoiceID)
}

// FailedBillings returns the failure history of an invoice.
func (s *BillingService) FailedBillings(ctx context.Context, invoiceID int64) ([]*domain.FailedBilling, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInvoiceID, invoiceID)
	}
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.failures.ListByInvoice(ctx, invoiceID)
}

// AuditTrail returns the audit events of an invoice and verifies their chain.
// A broken chain is reported in the result, not as an error.
func (s *BillingService) AuditTrail(ctx context.Context, invoiceID int64) (*AuditTrail, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInvoiceID, invoiceID)
	}
	events, err := s.audit.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list audit events of invoice %d: %w", invoiceID, err)
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}

	trail := &AuditTrail{InvoiceID: invoiceID, Events: events, Verified: true}
	if err := domain.VerifyAuditChain(events); err != nil {
		if !errors.Is(err, domain.ErrAuditChainBroken) {
			return nil, err
		}
		trail.Verified = false
		trail.VerifyError = err.Error()
		s.logger.Warn("audit chain verification failed", zap.Int64("invoice_id", invoiceID), zap.Error(err))
	}
	return trail, nil
}

// RecentPasses returns up to limit recorded pass summaries, newest first.
func (s *BillingService) RecentPasses(ctx context.Context, limit int) ([]PassSummary, error) {
	if s.history == nil {
		return []PassSummary{}, nil
	}
	return s.history.Recent(ctx, limit)
}
