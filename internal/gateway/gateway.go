// Package gateway holds the payment gateway contract and its adapters.
package gateway

import (
	"context"
	"errors"

	"billing/internal/domain"
)

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

var (
	// ErrNetwork is returned when the gateway could not be reached or timed out.
	ErrNetwork = errors.New("payment gateway network failure")

	// ErrUnknownCustomer is returned when the invoice's customer does not exist.
	ErrUnknownCustomer = errors.New("unknown customer")

	// ErrCurrencyMismatch is returned when the invoice currency differs from the customer's.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Gateway charges invoices. It must never be called while a store transaction is open.
type Gateway interface {
	// Charge returns true when the customer was charged, false when the charge was declined.
	Charge(ctx context.Context, invoice *domain.Invoice) (bool, error)
}
