package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"billing/internal/app"
	"billing/internal/config"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	components, err := app.Build(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to start billing service", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("error while closing connections", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      components.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Start the monthly scheduler.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	var scheduler sync.WaitGroup
	if cfg.Billing.SchedulerEnabled {
		scheduler.Add(1)
		go func() {
			defer scheduler.Done()
			if err := components.Billing.RunMonthly(schedulerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", zap.Error(err))
			}
		}()
		logger.Info("billing scheduler started", zap.Times("upcoming", components.Billing.UpcomingRuns(3)))
	}

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// In-flight passes finish their current invoice bookkeeping before RunMonthly returns.
	stopScheduler()
	scheduler.Wait()

	logger.Info("server exited")
}
