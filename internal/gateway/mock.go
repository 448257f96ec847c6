package gateway

import (
	"context"

	"go.uber.org/zap"

	"billing/internal/domain"
)

// MockGateway approves every charge. Used for local runs without gateway credentials.
type MockGateway struct {
	logger *zap.Logger
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway(logger *zap.Logger) *MockGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockGateway{logger: logger}
}

// Charge simulates a charge. Always succeeds.
func (g *MockGateway) Charge(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	g.logger.Debug("mock charge approved",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("amount", invoice.Amount.Value.String()),
		zap.String("currency", string(invoice.Amount.Currency)),
	)
	return true, nil
}
