package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"billing/internal/domain"
)

// Trigger says what started a billing pass.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// PassSummary counts what happened to each invoice of a pass.
type PassSummary struct {
	PassID     string    `json:"pass_id"`
	Trigger    Trigger   `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scanned    int       `json:"scanned"`
	Paid       int       `json:"paid"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Errored    int       `json:"errored"`
	Error      string    `json:"error,omitempty"`
}

// Scanner yields the invoices of one pass.
type Scanner interface {
	Scan(ctx context.Context) iter.Seq2[*domain.Invoice, error]
}

// Attempter makes one payment attempt for an invoice.
type Attempter interface {
	Attempt(ctx context.Context, invoice *domain.Invoice) (bool, error)
}

// SummaryRecorder stores pass summaries for operators.
type SummaryRecorder interface {
	Record(ctx context.Context, summary PassSummary) error
}

// BillingRunner drives a scan through the coordinator, one invoice at a time.
type BillingRunner struct {
	scanner   Scanner
	attempter Attempter
	clock     clock.PassiveClock
	logger    *zap.Logger
	nrApp     *newrelic.Application
	recorder  SummaryRecorder
}

// RunnerOption configures optional BillingRunner collaborators.
type RunnerOption func(*BillingRunner)

// WithNewRelic reports every pass as a New Relic background transaction.
func WithNewRelic(app *newrelic.Application) RunnerOption {
	return func(r *BillingRunner) { r.nrApp = app }
}

// WithSummaryRecorder stores every pass summary.
func WithSummaryRecorder(recorder SummaryRecorder) RunnerOption {
	return func(r *BillingRunner) { r.recorder = recorder }
}

// NewBillingRunner creates a new BillingRunner.
func NewBillingRunner(scanner Scanner, attempter Attempter, clk clock.PassiveClock, logger *zap.Logger, opts ...RunnerOption) *BillingRunner {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &BillingRunner{
		scanner:   scanner,
		attempter: attempter,
		clock:     clk,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunPass attempts every PENDING invoice once. Per-invoice failures are counted
// and logged; only a failing scan ends the pass early, returning the partial summary.
func (r *BillingRunner) RunPass(ctx context.Context, trigger Trigger) (PassSummary, error) {
	summary := PassSummary{
		PassID:    uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.clock.Now(),
	}
	logger := r.logger.With(zap.String("pass_id", summary.PassID), zap.String("trigger", string(trigger)))
	logger.Info("billing pass started")

	txn := r.nrApp.StartTransaction("billing-pass")
	defer txn.End()
	txn.AddAttribute("trigger", string(trigger))
	ctx = newrelic.NewContext(ctx, txn)

	var scanErr error
	for invoice, err := range r.scanner.Scan(ctx) {
		if err != nil {
			scanErr = err
			break
		}
		summary.Scanned++
		r.attemptOne(ctx, txn, logger, invoice, &summary)
	}

	summary.FinishedAt = r.clock.Now()
	if scanErr != nil {
		summary.Error = scanErr.Error()
		txn.NoticeError(scanErr)
		logger.Error("billing pass aborted", zap.Error(scanErr))
	}

	r.nrApp.RecordCustomEvent("BillingPass", map[string]any{
		"passId":  summary.PassID,
		"trigger": string(trigger),
		"scanned": summary.Scanned,
		"paid":    summary.Paid,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
		"errored": summary.Errored,
	})
	if r.recorder != nil {
		if err := r.recorder.Record(context.WithoutCancel(ctx), summary); err != nil {
			logger.Warn("failed to record pass summary", zap.Error(err))
		}
	}

	logger.Info("billing pass finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("paid", summary.Paid),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errored", summary.Errored),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	if scanErr != nil {
		return summary, fmt.Errorf("billing pass %s: %w", summary.PassID, scanErr)
	}
	return summary, nil
}

func (r *BillingRunner) attemptOne(ctx context.Context, txn *newrelic.Transaction, logger *zap.Logger, invoice *domain.Invoice, summary *PassSummary) {
	defer txn.StartSegment("attempt-invoice").End()

	logger = logger.With(zap.Int64("invoice_id", invoice.ID))
	defer func() {
		if rec := recover(); rec != nil {
			summary.Errored++
			err := fmt.Errorf("panic while attempting invoice %d: %v", invoice.ID, rec)
			txn.NoticeError(err)
			logger.Error("payment attempt panicked", zap.Error(err))
		}
	}()

	paid, err := r.attempter.Attempt(ctx, invoice)
	switch {
	case IsSkip(err):
		summary.Skipped++
		logger.Info("invoice skipped, another attempt owns it", zap.Error(err))
	case err != nil:
		summary.Errored++
		txn.NoticeError(err)
		logger.Error("payment attempt errored", zap.Error(err))
	case paid:
		summary.Paid++
	default:
		summary.Failed++
	}
}
