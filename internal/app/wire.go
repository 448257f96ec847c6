package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"billing/internal/config"
	"billing/internal/gateway"
	"billing/internal/handler"
	billingredis "billing/internal/redis"
	"billing/internal/repository"
	"billing/internal/repository/dynamo"
	"billing/internal/repository/memory"
	"billing/internal/repository/postgres"
	"billing/internal/schedule"
	"billing/internal/service"
)

// Components is the wired billing service shared by the server and the CLI.
type Components struct {
	Config      *config.Config
	Logger      *zap.Logger
	NewRelicApp *newrelic.Application
	Billing     *service.BillingService
	Handler     *handler.BillingHandler
	Idempotency billingredis.IdempotencyStoreInterface

	// Memory is set when running on the in-memory store.
	Memory *memory.Store

	closers []func() error
}

// stores groups the persistence backends picked by configuration.
type stores struct {
	invoices  repository.InvoiceRepository
	failures  repository.FailedBillingRepository
	customers repository.CustomerRepository
	audit     repository.AuditLog
	history   service.PassHistory
	recorder  service.SummaryRecorder
}

// Build connects every backend named by cfg and wires the billing service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Billing.Location()
	if err != nil {
		return nil, err
	}

	c := &Components{Config: cfg, Logger: logger}
	c.NewRelicApp = NewNewRelic(cfg.NewRelic, logger)

	s, err := c.buildStores(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	gw, err := newGateway(cfg.Gateway, s.customers, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	clk := schedule.InLocation(clock.RealClock{}, loc)
	cursor, err := service.NewPendingCursor(s.invoices, cfg.Billing.BatchSize)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	coordinator := service.NewPaymentCoordinator(s.invoices, s.audit, gw, clk, logger.Named("coordinator"))

	runnerOpts := []service.RunnerOption{service.WithNewRelic(c.NewRelicApp)}
	if s.recorder != nil {
		runnerOpts = append(runnerOpts, service.WithSummaryRecorder(s.recorder))
	}
	runner := service.NewBillingRunner(cursor, coordinator, clk, logger.Named("runner"), runnerOpts...)

	c.Billing = service.NewBillingService(runner, s.invoices, s.failures, s.audit, s.history, clk, logger.Named("billing"))
	c.Handler = handler.NewBillingHandler(c.Billing, logger.Named("http"))
	return c, nil
}

func (c *Components) buildStores(ctx context.Context) (*stores, error) {
	cfg := c.Config
	s := &stores{}

	if cfg.Billing.Store == config.StoreMemory {
		c.Memory = memory.NewStore()
		audit := memory.NewAuditLog()
		s.invoices, s.failures, s.customers, s.audit = c.Memory, c.Memory.FailedBillings(), c.Memory.Customers(), audit
		c.Logger.Warn("running on the in-memory store; state is lost on exit")
		return s, nil
	}

	var db *sql.DB
	if cfg.Billing.Store == config.StorePostgres || cfg.Billing.Audit == config.AuditPostgres {
		var err error
		db, err = NewDatabase(ctx, cfg.Database, c.NewRelicApp)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		c.Logger.Info("connected to PostgreSQL")
	}

	redisClient, err := NewRedisClient(ctx, cfg.Redis, c.NewRelicApp)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, redisClient.Close)
	c.Logger.Info("connected to Redis")
	c.wireRedis(s, redisClient)

	switch cfg.Billing.Store {
	case config.StorePostgres:
		s.invoices = postgres.NewInvoiceRepository(db)
		s.failures = postgres.NewFailedBillingRepository(db)
		s.customers = postgres.NewCustomerRepository(db)
	case config.StoreDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, fmt.Errorf("dynamodb: %w", err)
		}
		tables := dynamo.Tables{
			Invoices:       cfg.DynamoDB.InvoicesTable,
			FailedBillings: cfg.DynamoDB.FailedBillingsTable,
			Customers:      cfg.DynamoDB.CustomersTable,
		}
		s.invoices = dynamo.NewInvoiceRepository(client, tables)
		s.failures = dynamo.NewFailedBillingRepository(client, tables)
		s.customers = dynamo.NewCustomerRepository(client, tables)
	}

	if cfg.Billing.Audit == config.AuditPostgres {
		s.audit = postgres.NewAuditLog(db)
	} else {
		s.audit = billingredis.NewAuditLog(redisClient)
	}
	return s, nil
}

func (c *Components) wireRedis(s *stores, client *redis.Client) {
	passes := billingredis.NewPassStore(client)
	s.history = passes
	s.recorder = passes
	c.Idempotency = billingredis.NewIdempotencyStore(client)
}

func newGateway(cfg config.GatewayConfig, customers repository.CustomerRepository, logger *zap.Logger) (gateway.Gateway, error) {
	if cfg.Mock {
		logger.Warn("using mock payment gateway; every charge is approved")
		return gateway.NewMockGateway(logger.Named("gateway")), nil
	}
	mp, err := gateway.NewMercadoPagoGateway(cfg.AccessToken, customers, gateway.MercadoPagoOptions{
		PaymentMethodID:  cfg.PaymentMethodID,
		PayerEmailFormat: cfg.PayerEmailFormat,
	}, logger.Named("gateway"))
	if err != nil {
		return nil, err
	}
	return mp, nil
}

// Router builds the operator HTTP router.
func (c *Components) Router() http.Handler {
	return NewRouter(RouterDeps{
		BillingHandler:   c.Handler,
		IdempotencyStore: c.Idempotency,
		NewRelicApp:      c.NewRelicApp,
		Logger:           c.Logger,
	})
}

// Close releases connections in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	if c.NewRelicApp != nil {
		c.NewRelicApp.Shutdown(0)
	}
	return errors.Join(errs...)
}
