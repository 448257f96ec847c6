package gateway

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"billing/internal/domain"
	"billing/internal/repository/memory"
)

type fakePaymentClient struct {
	requests []payment.Request
	resp     *payment.Response
	err      error
}

func (f *fakePaymentClient) Create(ctx context.Context, request payment.Request) (*payment.Response, error) {
	f.requests = append(f.requests, request)
	return f.resp, f.err
}

func setupGateway(t *testing.T, client *fakePaymentClient) (*MercadoPagoGateway, *domain.Invoice) {
	t.Helper()
	store := memory.NewStore()
	customers := store.Customers()
	require.NoError(t, customers.Create(context.Background(), &domain.Customer{ID: 42, Currency: domain.CurrencyEUR}))

	gw := newMercadoPagoGateway(client, customers, MercadoPagoOptions{PaymentMethodID: "pix"}, zaptest.NewLogger(t))
	inv := &domain.Invoice{
		ID:         7,
		CustomerID: 42,
		Amount:     domain.Money{Value: decimal.RequireFromString("105.10"), Currency: domain.CurrencyEUR},
		Status:     domain.InvoiceStatusStartedPayment,
	}
	return gw, inv
}

func TestMercadoPagoGateway_Approved(t *testing.T) {
	client := &fakePaymentClient{resp: &payment.Response{ID: 1, Status: "approved"}}
	gw, inv := setupGateway(t, client)

	ok, err := gw.Charge(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, 105.1, req.TransactionAmount)
	assert.Equal(t, "7", req.ExternalReference)
	assert.Equal(t, "pix", req.PaymentMethodID)
	require.NotNil(t, req.Payer)
	assert.Equal(t, "customer-42@billing.invalid", req.Payer.Email)
}

func TestMercadoPagoGateway_Rejected(t *testing.T) {
	client := &fakePaymentClient{resp: &payment.Response{ID: 2, Status: "rejected"}}
	gw, inv := setupGateway(t, client)

	ok, err := gw.Charge(context.Background(), inv)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMercadoPagoGateway_UnconfirmedStatusIsAnError(t *testing.T) {
	client := &fakePaymentClient{resp: &payment.Response{ID: 3, Status: "in_process"}}
	gw, inv := setupGateway(t, client)

	ok, err := gw.Charge(context.Background(), inv)
	require.Error(t, err)
	assert.False(t, ok)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestMercadoPagoGateway_UnknownCustomer(t *testing.T) {
	client := &fakePaymentClient{}
	gw, inv := setupGateway(t, client)
	inv.CustomerID = 404

	_, err := gw.Charge(context.Background(), inv)
	assert.ErrorIs(t, err, ErrUnknownCustomer)
	assert.Empty(t, client.requests)
}

func TestMercadoPagoGateway_CurrencyMismatch(t *testing.T) {
	client := &fakePaymentClient{}
	gw, inv := setupGateway(t, client)
	inv.Amount.Currency = domain.CurrencyUSD

	_, err := gw.Charge(context.Background(), inv)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Empty(t, client.requests)
}

func TestMercadoPagoGateway_NetworkErrors(t *testing.T) {
	cases := map[string]error{
		"deadline": context.DeadlineExceeded,
		"dial":     &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			gw, inv := setupGateway(t, &fakePaymentClient{err: cause})
			_, err := gw.Charge(context.Background(), inv)
			assert.ErrorIs(t, err, ErrNetwork)
		})
	}
}

func TestNewMercadoPagoGateway_RequiresToken(t *testing.T) {
	_, err := NewMercadoPagoGateway("", nil, MercadoPagoOptions{}, nil)
	assert.ErrorIs(t, err, ErrMissingMercadoPagoAccessToken)
}
