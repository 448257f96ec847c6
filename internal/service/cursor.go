package service

import (
	"context"
	"fmt"
	"iter"

	"billing/internal/domain"
)

// PendingPager fetches one page of PENDING invoices keyed by ID.
type PendingPager interface {
	FetchPendingPage(ctx context.Context, afterID int64, limit int) ([]*domain.Invoice, error)
}

// PendingCursor scans PENDING invoices page by page, so memory use is bounded by
// the batch size. The scan is not a snapshot.
type PendingCursor struct {
	pager     PendingPager
	batchSize int
}

// NewPendingCursor creates a cursor fetching batchSize invoices per page.
func NewPendingCursor(pager PendingPager, batchSize int) (*PendingCursor, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}
	return &PendingCursor{pager: pager, batchSize: batchSize}, nil
}

// BatchSize returns the page size.
func (c *PendingCursor) BatchSize() int {
	return c.batchSize
}

// Scan yields PENDING invoices in ascending ID order. A fetch error is yielded
// once and ends the scan. Each call starts a fresh scan from the lowest ID.
func (c *PendingCursor) Scan(ctx context.Context) iter.Seq2[*domain.Invoice, error] {
	return func(yield func(*domain.Invoice, error) bool) {
		var lastSeenID int64
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, err := c.pager.FetchPendingPage(ctx, lastSeenID, c.batchSize)
			if err != nil {
				yield(nil, fmt.Errorf("fetch pending invoices after %d: %w", lastSeenID, err))
				return
			}

			for _, inv := range page {
				if !yield(inv, nil) {
					return
				}
			}

			// A short page means the table has been read to the end.
			if len(page) < c.batchSize {
				return
			}
			lastSeenID = page[len(page)-1].ID
		}
	}
}
