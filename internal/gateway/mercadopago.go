package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"go.uber.org/zap"

	"billing/internal/domain"
	"billing/internal/repository"
)

// ErrMissingMercadoPagoAccessToken is returned when no access token is configured.
var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

const (
	statusApproved = "approved"
	statusRejected = "rejected"
)

// paymentCreator is the part of payment.Client the gateway uses.
type paymentCreator interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
}

// MercadoPagoOptions configures the payment requests sent to Mercado Pago.
type MercadoPagoOptions struct {
	PaymentMethodID  string
	PayerEmailFormat string // formatted with the customer ID
}

// MercadoPagoGateway charges invoices through the Mercado Pago payments API.
type MercadoPagoGateway struct {
	client    paymentCreator
	customers repository.CustomerRepository
	opts      MercadoPagoOptions
	logger    *zap.Logger
}

// NewMercadoPagoGateway creates a gateway backed by the Mercado Pago SDK.
func NewMercadoPagoGateway(accessToken string, customers repository.CustomerRepository, opts MercadoPagoOptions, logger *zap.Logger) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create mercado pago config: %w", err)
	}
	return newMercadoPagoGateway(payment.NewClient(cfg), customers, opts, logger), nil
}

func newMercadoPagoGateway(client paymentCreator, customers repository.CustomerRepository, opts MercadoPagoOptions, logger *zap.Logger) *MercadoPagoGateway {
	if opts.PayerEmailFormat == "" {
		opts.PayerEmailFormat = "customer-%d@billing.invalid"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MercadoPagoGateway{
		client:    client,
		customers: customers,
		opts:      opts,
		logger:    logger.Named("mercadopago"),
	}
}

// Charge resolves the customer, checks the currency and creates the payment.
func (g *MercadoPagoGateway) Charge(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	customer, err := g.customers.GetByID(ctx, invoice.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("%w: customer %d", ErrUnknownCustomer, invoice.CustomerID)
		}
		return false, fmt.Errorf("failed to load customer %d: %w", invoice.CustomerID, err)
	}
	if customer.Currency != invoice.Amount.Currency {
		return false, fmt.Errorf("%w: invoice %d is in %s, customer %d pays in %s",
			ErrCurrencyMismatch, invoice.ID, invoice.Amount.Currency, customer.ID, customer.Currency)
	}

	req := payment.Request{
		TransactionAmount: invoice.Amount.Value.InexactFloat64(),
		Description:       fmt.Sprintf("Invoice %d", invoice.ID),
		ExternalReference: strconv.FormatInt(invoice.ID, 10),
		PaymentMethodID:   g.opts.PaymentMethodID,
		Payer: &payment.PayerRequest{
			Email: fmt.Sprintf(g.opts.PayerEmailFormat, customer.ID),
		},
	}

	resp, err := g.client.Create(ctx, req)
	if err != nil {
		if isNetworkError(err) {
			return false, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		return false, fmt.Errorf("mercado pago create payment: %w", err)
	}

	g.logger.Info("payment created",
		zap.Int64("invoice_id", invoice.ID),
		zap.Int("provider_payment_id", resp.ID),
		zap.String("provider_status", resp.Status),
		zap.String("provider_status_detail", resp.StatusDetail),
	)

	switch resp.Status {
	case statusApproved:
		return true, nil
	case statusRejected:
		return false, nil
	default:
		return false, fmt.Errorf("payment %d for invoice %d left in status %q", resp.ID, invoice.ID, resp.Status)
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
