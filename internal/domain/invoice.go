package domain

import "github.com/shopspring/decimal"

// InvoiceStatus represents where an invoice is in its payment lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPending        InvoiceStatus = "PENDING"
	InvoiceStatusStartedPayment InvoiceStatus = "STARTED_PAYMENT"
	InvoiceStatusPaid           InvoiceStatus = "PAID"
	InvoiceStatusFailedPayment  InvoiceStatus = "FAILED_PAYMENT"
)

// Valid reports whether s is one of the known statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusStartedPayment, InvoiceStatusPaid, InvoiceStatusFailedPayment:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the forward payment graph.
// The operator requeue edge is not included, see CanForceRequeue.
func CanTransition(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceStatusPending:
		return to == InvoiceStatusStartedPayment
	case InvoiceStatusStartedPayment:
		return to == InvoiceStatusPaid || to == InvoiceStatusFailedPayment
	}
	return false
}

// CanForceRequeue reports whether an operator may move an invoice in status s back to PENDING.
func CanForceRequeue(s InvoiceStatus) bool {
	return s == InvoiceStatusFailedPayment || s == InvoiceStatusStartedPayment
}

// RequeueableStatuses lists the statuses ForceRequeue accepts.
var RequeueableStatuses = []InvoiceStatus{InvoiceStatusFailedPayment, InvoiceStatusStartedPayment}

// Money is a non-negative amount in a single currency.
type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

// Invoice is a billable unit owned by a customer.
type Invoice struct {
	ID         int64
	CustomerID int64
	Amount     Money
	Status     InvoiceStatus
}
