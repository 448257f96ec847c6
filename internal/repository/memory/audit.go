package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"billing/internal/domain"
	"billing/internal/repository"
)

// AuditLog keeps hash-chained audit events per invoice.
type AuditLog struct {
	mu     sync.RWMutex
	events map[int64][]domain.AuditEvent

	AppendCount int32
	AppendError error
}

// NewAuditLog creates an empty AuditLog.
func NewAuditLog() *AuditLog {
	return &AuditLog{events: make(map[int64][]domain.AuditEvent)}
}

var _ repository.AuditLog = (*AuditLog)(nil)

// Append seals and stores the event.
func (l *AuditLog) Append(ctx context.Context, event *domain.AuditEvent) error {
	atomic.AddInt32(&l.AppendCount, 1)
	if l.AppendError != nil {
		return l.AppendError
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	if chain := l.events[event.InvoiceID]; len(chain) > 0 {
		prev = chain[len(chain)-1].Hash
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Seal(prev)
	l.events[event.InvoiceID] = append(l.events[event.InvoiceID], *event)
	return nil
}

// ListByInvoice returns a copy of the invoice's events.
func (l *AuditLog) ListByInvoice(ctx context.Context, invoiceID int64) ([]domain.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.AuditEvent(nil), l.events[invoiceID]...), nil
}

// Kinds returns the kinds recorded for an invoice, for test assertions.
func (l *AuditLog) Kinds(invoiceID int64) []domain.AuditEventKind {
	l.mu.RLock()
	defer l.mu.RUnlock()
	kinds := make([]domain.AuditEventKind, 0, len(l.events[invoiceID]))
	for _, e := range l.events[invoiceID] {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
