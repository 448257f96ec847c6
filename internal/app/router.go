package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"billing/internal/handler"
	"billing/internal/middleware"
	billingredis "billing/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BillingHandler   *handler.BillingHandler
	IdempotencyStore billingredis.IdempotencyStoreInterface
	NewRelicApp      *newrelic.Application
	Logger           *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.IdempotencyStore != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore, deps.Logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Billing pass routes.
		billing := v1.Group("/billing")
		{
			billing.POST("/force", deps.BillingHandler.ForceRun)
			billing.GET("/passes", deps.BillingHandler.ListPasses)
			billing.GET("/schedule", deps.BillingHandler.Schedule)
		}

		// Invoice routes.
		invoices := v1.Group("/invoices")
		{
			invoices.GET("/:id", deps.BillingHandler.GetInvoice)
			invoices.POST("/:id/requeue", deps.BillingHandler.Requeue)
			invoices.GET("/:id/failures", deps.BillingHandler.ListFailures)
			invoices.GET("/:id/audit", deps.BillingHandler.AuditTrail)
		}
	}

	return router
}
