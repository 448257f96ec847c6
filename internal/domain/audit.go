package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AuditEventKind is the lifecycle milestone an audit event records.
type AuditEventKind string

const (
	AuditEventStarted   AuditEventKind = "started"
	AuditEventCompleted AuditEventKind = "completed"
	AuditEventFailed    AuditEventKind = "failed"
	AuditEventRequeued  AuditEventKind = "requeued"
)

// ErrAuditChainBroken is returned when a stored audit trail does not verify.
var ErrAuditChainBroken = errors.New("audit chain broken")

// AuditEvent is one entry of an invoice's hash-chained audit trail.
type AuditEvent struct {
	ID        string
	InvoiceID int64
	Kind      AuditEventKind
	Reason    FailureReason
	Message   string
	At        time.Time
	PrevHash  string
	Hash      string
}

// Seal links e to the previous event hash and computes its own hash.
// At is truncated to microseconds so the hash survives a round trip through Postgres.
func (e *AuditEvent) Seal(prevHash string) {
	e.At = e.At.UTC().Truncate(time.Microsecond)
	e.PrevHash = prevHash
	e.Hash = e.computeHash()
}

func (e *AuditEvent) computeHash() string {
	payload := strings.Join([]string{
		e.ID,
		strconv.FormatInt(e.InvoiceID, 10),
		string(e.Kind),
		string(e.Reason),
		e.Message,
		e.At.UTC().Format(time.RFC3339Nano),
		e.PrevHash,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyAuditChain checks that events form an unbroken chain in order.
func VerifyAuditChain(events []AuditEvent) error {
	prev := ""
	for i := range events {
		e := &events[i]
		if e.PrevHash != prev {
			return fmt.Errorf("%w: event %d of invoice %d does not link to its predecessor", ErrAuditChainBroken, i, e.InvoiceID)
		}
		if e.computeHash() != e.Hash {
			return fmt.Errorf("%w: event %d of invoice %d has been altered", ErrAuditChainBroken, i, e.InvoiceID)
		}
		prev = e.Hash
	}
	return nil
}
