package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadops-io/leadops/internal/config"
	"github.com/leadops-io/leadops/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := worker.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load worker config: %w", err)
	}

	logger := config.NewLogger(os.Getenv("ENV"), "worker")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := worker.NewPoller(cfg, logger)
	if err := poller.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	logger.Info("worker stopped")
	return nil
}
