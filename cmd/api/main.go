package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadops-io/leadops/internal/api"
	"github.com/leadops-io/leadops/internal/api/middleware"
	"github.com/leadops-io/leadops/internal/config"
	"github.com/leadops-io/leadops/internal/database"
	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/ratelimit"
	"github.com/leadops-io/leadops/internal/repository"
	"github.com/leadops-io/leadops/internal/scheduler"
	"github.com/leadops-io/leadops/internal/urlguard"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, "api")
	slog.SetDefault(logger)

	logger.Info("starting Leadops API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	// Database pool
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Repositories
	workspaceRepo := repository.NewWorkspaceRepository(pool)
	destinationRepo := repository.NewDestinationRepository(pool)
	deliveryRepo := repository.NewDeliveryRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)

	// Delivery pipeline
	guard := urlguard.New()
	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Deliveries:   deliveryRepo,
		Attempts:     attemptRepo,
		Destinations: destinationRepo,
		Leads:        leadRepo,
		Sender:       dispatch.NewSender(cfg.DispatchTimeout()),
		Guard:        guard,
		Backoff: dispatch.BackoffPolicy{
			Base: cfg.DeliveryBaseDelay(),
			Max:  cfg.DeliveryMaxDelay(),
		},
		MaxAttempts: cfg.DeliveryMaxAttempts,
		Logger:      logger,
	})
	runner := scheduler.NewRunner(deliveryRepo, dispatcher, cfg.DeliveryClaimLease(), logger)

	// Rate limiting backed by Postgres so limits hold across replicas
	var limiter middleware.Limiter = ratelimit.NewPGLimiter(pool)
	sourceLimiter := ratelimit.NewSourceLimiter(pool)

	// Setup router
	router := api.NewRouter(cfg, logger, &api.Dependencies{
		WorkspaceRepo:   workspaceRepo,
		DestinationRepo: destinationRepo,
		DeliveryRepo:    deliveryRepo,
		AttemptRepo:     attemptRepo,
		LeadRepo:        leadRepo,
		Dispatcher:      dispatcher,
		Runner:          runner,
		Guard:           guard,
		Limiter:         limiter,
		SourceLimiter:   sourceLimiter,
		DB:              pool,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}
