package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"billing/internal/domain"
)

const (
	auditStreamPrefix = "billing:audit:"

	// maxAppendAttempts bounds retries when another writer extends the stream
	// between reading its head and appending.
	maxAppendAttempts = 5
)

// ErrAuditContention is returned when an append keeps losing the race for a stream.
var ErrAuditContention = errors.New("audit stream contention")

// AuditLog keeps each invoice's audit trail in its own Redis stream.
// Appends WATCH the stream so the chain head read and the XADD are atomic.
type AuditLog struct {
	client *redis.Client
}

// NewAuditLog creates a new Redis stream audit log.
func NewAuditLog(client *redis.Client) *AuditLog {
	return &AuditLog{client: client}
}

func auditStreamKey(invoiceID int64) string {
	return auditStreamPrefix + strconv.FormatInt(invoiceID, 10)
}

// Append seals the event against the stream's last entry and adds it.
func (l *AuditLog) Append(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	key := auditStreamKey(event.InvoiceID)

	for range maxAppendAttempts {
		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			last, err := tx.XRevRangeN(ctx, key, "+", "-", 1).Result()
			if err != nil {
				return err
			}
			prevHash := ""
			if len(last) > 0 {
				prevHash, _ = last[0].Values["hash"].(string)
			}

			event.Seal(prevHash)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.XAdd(ctx, &redis.XAddArgs{
					Stream: key,
					Values: eventFields(event),
				})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: invoice %d", ErrAuditContention, event.InvoiceID)
}

// ListByInvoice returns the invoice's events in append order.
func (l *AuditLog) ListByInvoice(ctx context.Context, invoiceID int64) ([]domain.AuditEvent, error) {
	messages, err := l.client.XRange(ctx, auditStreamKey(invoiceID), "-", "+").Result()
	if err != nil {
		return nil, err
	}

	events := make([]domain.AuditEvent, 0, len(messages))
	for _, msg := range messages {
		event, err := eventFromFields(invoiceID, msg.Values)
		if err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", msg.ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func eventFields(e *domain.AuditEvent) map[string]any {
	return map[string]any{
		"id":        e.ID,
		"kind":      string(e.Kind),
		"reason":    string(e.Reason),
		"message":   e.Message,
		"at":        e.At.Format(time.RFC3339Nano),
		"prev_hash": e.PrevHash,
		"hash":      e.Hash,
	}
}

func eventFromFields(invoiceID int64, values map[string]any) (domain.AuditEvent, error) {
	field := func(name string) string {
		s, _ := values[name].(string)
		return s
	}

	at, err := time.Parse(time.RFC3339Nano, field("at"))
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return domain.AuditEvent{
		ID:        field("id"),
		InvoiceID: invoiceID,
		Kind:      domain.AuditEventKind(field("kind")),
		Reason:    domain.FailureReason(field("reason")),
		Message:   field("message"),
		At:        at.UTC(),
		PrevHash:  field("prev_hash"),
		Hash:      field("hash"),
	}, nil
}
