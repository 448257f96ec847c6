package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing/internal/domain"
	"billing/internal/service"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAuditLogAppendAndList(t *testing.T) {
	_, client := newTestClient(t)
	log := NewAuditLog(client)
	ctx := context.Background()
	at := time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, &domain.AuditEvent{InvoiceID: 1, Kind: domain.AuditEventStarted, At: at}))
	require.NoError(t, log.Append(ctx, &domain.AuditEvent{
		InvoiceID: 1,
		Kind:      domain.AuditEventFailed,
		Reason:    domain.FailureReasonCurrencyMismatch,
		Message:   "customer pays in SEK",
		At:        at.Add(time.Second),
	}))

	events, err := log.ListByInvoice(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.AuditEventFailed, events[1].Kind)
	assert.Equal(t, domain.FailureReasonCurrencyMismatch, events[1].Reason)
	assert.Equal(t, "customer pays in SEK", events[1].Message)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	require.NoError(t, domain.VerifyAuditChain(events))

	empty, err := log.ListByInvoice(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAuditLogConcurrentAppendsKeepChain(t *testing.T) {
	_, client := newTestClient(t)
	log := NewAuditLog(client)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- log.Append(ctx, &domain.AuditEvent{
				InvoiceID: 9,
				Kind:      domain.AuditEventRequeued,
				Message:   fmt.Sprintf("writer %d", i),
				At:        time.Now(),
			})
		}()
	}
	wg.Wait()
	close(errs)

	appended := 0
	for err := range errs {
		if err == nil {
			appended++
		} else {
			require.ErrorIs(t, err, ErrAuditContention)
		}
	}

	events, err := log.ListByInvoice(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, events, appended)
	require.NoError(t, domain.VerifyAuditChain(events))
}

func TestAuditLogDetectsTampering(t *testing.T) {
	_, client := newTestClient(t)
	log := NewAuditLog(client)
	ctx := context.Background()
	at := time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, &domain.AuditEvent{InvoiceID: 3, Kind: domain.AuditEventStarted, At: at}))
	require.NoError(t, log.Append(ctx, &domain.AuditEvent{InvoiceID: 3, Kind: domain.AuditEventCompleted, At: at}))

	// Rewrite the first entry as a failure.
	messages, err := client.XRange(ctx, auditStreamKey(3), "-", "+").Result()
	require.NoError(t, err)
	require.NoError(t, client.XDel(ctx, auditStreamKey(3), messages[0].ID).Err())

	events, err := log.ListByInvoice(ctx, 3)
	require.NoError(t, err)
	require.ErrorIs(t, domain.VerifyAuditChain(events), domain.ErrAuditChainBroken)
}

func TestPassStoreRecent(t *testing.T) {
	_, client := newTestClient(t)
	store := NewPassStore(client)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, store.Record(ctx, service.PassSummary{
			PassID:  fmt.Sprintf("pass-%d", i),
			Trigger: service.TriggerScheduled,
			Paid:    i,
		}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "pass-2", recent[0].PassID)
	assert.Equal(t, 2, recent[0].Paid)
	assert.Equal(t, "pass-1", recent[1].PassID)

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPassStoreSkipsExpired(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPassStore(client)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, service.PassSummary{PassID: "old"}))
	require.NoError(t, store.Record(ctx, service.PassSummary{PassID: "new"}))
	mr.Del(passKeyPrefix + "old")

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].PassID)
}

func TestPassStoreEmpty(t *testing.T) {
	_, client := newTestClient(t)
	recent, err := NewPassStore(client).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestIdempotencyStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	miss, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	response := &CachedResponse{
		StatusCode: http.StatusAccepted,
		Body:       json.RawMessage(`{"paid":1}`),
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
	}
	require.NoError(t, store.Set(ctx, "k1", response, time.Minute))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, got.StatusCode)
	assert.JSONEq(t, `{"paid":1}`, string(got.Body))

	mr.FastForward(2 * time.Minute)
	expired, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, expired)
}
