// Package memory provides mutex-guarded in-memory stores. The conditional
// transition is atomic under the store mutex, which gives the same guarantee
// the SQL and DynamoDB backends get from their storage engines.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"billing/internal/domain"
	"billing/internal/repository"
)

// Store holds invoices, customers and failed billings.
type Store struct {
	mu        sync.RWMutex
	invoices  map[int64]*domain.Invoice
	customers map[int64]*domain.Customer
	failures  map[int64][]*domain.FailedBilling
	nextID    int64

	nextCustomerID int64

	// Counters for verification.
	PageFetchCount  int32
	TransitionCount int32

	// Error injection.
	FetchPageError  error
	TransitionError error
	FailPaymentErr  error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		invoices:  make(map[int64]*domain.Invoice),
		customers: make(map[int64]*domain.Customer),
		failures:  make(map[int64][]*domain.FailedBilling),
	}
}

var (
	_ repository.InvoiceRepository       = (*Store)(nil)
	_ repository.FailedBillingRepository = (*FailedBillings)(nil)
	_ repository.CustomerRepository      = (*Customers)(nil)
)

// Create adds an invoice, assigning the next ID when ID is zero.
func (s *Store) Create(ctx context.Context, invoice *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if invoice.ID == 0 {
		s.nextID++
		invoice.ID = s.nextID
	} else if invoice.ID > s.nextID {
		s.nextID = invoice.ID
	}
	stored := *invoice
	s.invoices[invoice.ID] = &stored
	return nil
}

// GetByID returns a copy of the invoice.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *inv
	return &copy, nil
}

// FetchPendingPage returns up to limit PENDING invoices after afterID.
func (s *Store) FetchPendingPage(ctx context.Context, afterID int64, limit int) ([]*domain.Invoice, error) {
	atomic.AddInt32(&s.PageFetchCount, 1)
	if s.FetchPageError != nil {
		return nil, s.FetchPageError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.invoices))
	for id, inv := range s.invoices {
		if id > afterID && inv.Status == domain.InvoiceStatusPending {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	page := make([]*domain.Invoice, 0, len(ids))
	for _, id := range ids {
		copy := *s.invoices[id]
		page = append(page, &copy)
	}
	return page, nil
}

// Transition performs the conditional status update.
func (s *Store) Transition(ctx context.Context, id int64, expected, next domain.InvoiceStatus) (*domain.Invoice, error) {
	atomic.AddInt32(&s.TransitionCount, 1)
	if err := repository.ValidateTransition(expected, next); err != nil {
		return nil, err
	}
	if s.TransitionError != nil {
		return nil, s.TransitionError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(id, []domain.InvoiceStatus{expected}, next)
}

// FailPayment moves STARTED_PAYMENT to FAILED_PAYMENT and records the failure.
func (s *Store) FailPayment(ctx context.Context, id int64, record *domain.FailedBilling) (*domain.Invoice, error) {
	if s.FailPaymentErr != nil {
		return nil, s.FailPaymentErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, err := s.moveLocked(id, []domain.InvoiceStatus{domain.InvoiceStatusStartedPayment}, domain.InvoiceStatusFailedPayment)
	if err != nil {
		return nil, err
	}
	stored := *record
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.InvoiceID = id
	s.failures[id] = append(s.failures[id], &stored)
	return inv, nil
}

// ForceRequeue moves FAILED_PAYMENT or STARTED_PAYMENT back to PENDING.
func (s *Store) ForceRequeue(ctx context.Context, id int64) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(id, domain.RequeueableStatuses, domain.InvoiceStatusPending)
}

func (s *Store) moveLocked(id int64, expected []domain.InvoiceStatus, next domain.InvoiceStatus) (*domain.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !slices.Contains(expected, inv.Status) {
		return nil, &repository.StateConflictError{
			InvoiceID: id,
			Expected:  expected,
			Actual:    inv.Status,
			Target:    next,
		}
	}
	inv.Status = next
	copy := *inv
	return &copy, nil
}

// Status returns the current status of an invoice for test assertions.
func (s *Store) Status(id int64) domain.InvoiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv, ok := s.invoices[id]; ok {
		return inv.Status
	}
	return ""
}

// FailedBillings exposes the store's failure history as a FailedBillingRepository.
type FailedBillings struct{ store *Store }

// FailedBillings returns a read view over recorded failures.
func (s *Store) FailedBillings() *FailedBillings {
	return &FailedBillings{store: s}
}

// ListByInvoice returns the failures of an invoice ordered by timestamp.
func (f *FailedBillings) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.FailedBilling, error) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	result := make([]*domain.FailedBilling, 0, len(f.store.failures[invoiceID]))
	for _, fb := range f.store.failures[invoiceID] {
		copy := *fb
		result = append(result, &copy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// Customers exposes the store's customers as a CustomerRepository.
type Customers struct{ store *Store }

// Customers returns the customer view of the store.
func (s *Store) Customers() *Customers {
	return &Customers{store: s}
}

// Create adds a customer, assigning an ID when zero.
func (c *Customers) Create(ctx context.Context, customer *domain.Customer) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if customer.ID == 0 {
		c.store.nextCustomerID++
		customer.ID = c.store.nextCustomerID
	} else if customer.ID > c.store.nextCustomerID {
		c.store.nextCustomerID = customer.ID
	}
	stored := *customer
	c.store.customers[customer.ID] = &stored
	return nil
}

// GetByID returns a copy of the customer.
func (c *Customers) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	customer, ok := c.store.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *customer
	return &copy, nil
}
