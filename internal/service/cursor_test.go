package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing/internal/domain"
	"billing/internal/repository/memory"
)

type recordingPager struct {
	pager PendingPager
	calls []int64
}

func (p *recordingPager) FetchPendingPage(ctx context.Context, afterID int64, limit int) ([]*domain.Invoice, error) {
	p.calls = append(p.calls, afterID)
	return p.pager.FetchPendingPage(ctx, afterID, limit)
}

func seedInvoices(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for range n {
		require.NoError(t, store.Create(context.Background(), &domain.Invoice{
			CustomerID: 1,
			Amount:     domain.Money{Value: decimal.NewFromInt(10), Currency: domain.CurrencyUSD},
			Status:     domain.InvoiceStatusPending,
		}))
	}
}

func collectIDs(t *testing.T, cursor *PendingCursor) []int64 {
	t.Helper()
	var ids []int64
	for inv, err := range cursor.Scan(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, inv.ID)
	}
	return ids
}

func TestNewPendingCursorRejectsBadBatchSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewPendingCursor(memory.NewStore(), size)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
	}
}

func TestScanPages(t *testing.T) {
	store := memory.NewStore()
	seedInvoices(t, store, 5)
	pager := &recordingPager{pager: store}
	cursor, err := NewPendingCursor(pager, 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, collectIDs(t, cursor))
	assert.Equal(t, []int64{0, 2, 4}, pager.calls)
}

func TestScanExactMultipleFetchesEmptyPage(t *testing.T) {
	store := memory.NewStore()
	seedInvoices(t, store, 4)
	pager := &recordingPager{pager: store}
	cursor, err := NewPendingCursor(pager, 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4}, collectIDs(t, cursor))
	assert.Equal(t, []int64{0, 2, 4}, pager.calls)
}

func TestScanEmpty(t *testing.T) {
	store := memory.NewStore()
	cursor, err := NewPendingCursor(store, 10)
	require.NoError(t, err)

	assert.Empty(t, collectIDs(t, cursor))
	assert.Equal(t, int32(1), store.PageFetchCount)
}

func TestScanSkipsNonPending(t *testing.T) {
	store := memory.NewStore()
	seedInvoices(t, store, 3)
	_, err := store.Transition(context.Background(), 2, domain.InvoiceStatusPending, domain.InvoiceStatusStartedPayment)
	require.NoError(t, err)

	cursor, err := NewPendingCursor(store, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, collectIDs(t, cursor))
}

func TestScanYieldsFetchErrorOnce(t *testing.T) {
	store := memory.NewStore()
	store.FetchPageError = errors.New("db down")
	cursor, err := NewPendingCursor(store, 2)
	require.NoError(t, err)

	var errs []error
	for inv, err := range cursor.Scan(context.Background()) {
		assert.Nil(t, inv)
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], store.FetchPageError)
}

func TestScanStopsWhenConsumerBreaks(t *testing.T) {
	store := memory.NewStore()
	seedInvoices(t, store, 5)
	cursor, err := NewPendingCursor(store, 2)
	require.NoError(t, err)

	for inv, err := range cursor.Scan(context.Background()) {
		require.NoError(t, err)
		if inv.ID == 1 {
			break
		}
	}
	assert.Equal(t, int32(1), store.PageFetchCount)
}

func TestScanCancelledContext(t *testing.T) {
	store := memory.NewStore()
	seedInvoices(t, store, 3)
	cursor, err := NewPendingCursor(store, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range cursor.Scan(ctx) {
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, int32(0), store.PageFetchCount)
}
