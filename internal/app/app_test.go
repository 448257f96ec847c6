package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"billing/internal/config"
	"billing/internal/domain"
	"billing/internal/service"
)

func memoryConfig() *config.Config {
	cfg := config.Load()
	cfg.Billing.Store = config.StoreMemory
	cfg.Billing.Audit = config.AuditPostgres
	cfg.Billing.BatchSize = 2
	cfg.Billing.Timezone = "UTC"
	cfg.Gateway.Mock = true
	cfg.NewRelic.Enabled = false
	return cfg
}

func TestBuildInMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, err := Build(context.Background(), memoryConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NotNil(t, c.Memory)
	assert.Nil(t, c.Idempotency)

	ctx := context.Background()
	for range 3 {
		require.NoError(t, c.Memory.Create(ctx, &domain.Invoice{
			CustomerID: 1,
			Amount:     domain.Money{Value: decimal.NewFromInt(5), Currency: domain.CurrencyEUR},
			Status:     domain.InvoiceStatusPending,
		}))
	}

	router := c.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/billing/force", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary service.PassSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Paid)
	assert.Equal(t, domain.InvoiceStatusPaid, c.Memory.Status(1))
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Billing.BatchSize = 0
	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.LogConfig{Level: "chatty"})
	require.Error(t, err)
}

func TestCollectionOf(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "billing:audit", collectionOf(redis.NewStringCmd(ctx, "xadd", "billing:audit:12")))
	assert.Equal(t, "billing", collectionOf(redis.NewStringCmd(ctx, "lrange", "billing:passes")))
	assert.Equal(t, "redis", collectionOf(redis.NewStringCmd(ctx, "ping")))
}

func TestNewNewRelicDisabled(t *testing.T) {
	assert.Nil(t, NewNewRelic(config.NewRelicConfig{Enabled: false}, zaptest.NewLogger(t)))
	assert.Nil(t, NewNewRelic(config.NewRelicConfig{Enabled: true}, zaptest.NewLogger(t)))
}

func TestDatastoreTracerPassesThroughWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	var calls int

	hook := datastoreTracer{}
	err := hook.ProcessHook(func(ctx context.Context, cmd redis.Cmder) error {
		calls++
		return nil
	})(ctx, redis.NewStringCmd(ctx, "get", "idempotency:/v1/billing/force:abc"))
	require.NoError(t, err)

	err = hook.ProcessPipelineHook(func(ctx context.Context, cmds []redis.Cmder) error {
		calls++
		return assert.AnError
	})(ctx, []redis.Cmder{redis.NewStringCmd(ctx, "multi"), redis.NewStringCmd(ctx, "xadd", "billing:audit:1")})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, calls)
}
