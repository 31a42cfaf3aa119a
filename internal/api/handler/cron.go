package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/leadops-io/leadops/internal/scheduler"
)

// CronHandler exposes the scheduler tick to the polling worker and external
// cron services.
type CronHandler struct {
	runner       *scheduler.Runner
	defaultLimit int
	logger       *slog.Logger
}

func NewCronHandler(runner *scheduler.Runner, defaultLimit int, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		runner:       runner,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Deliveries POST /internal/cron/deliveries
func (h *CronHandler) Deliveries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", h.defaultLimit)
	if limit < 1 || limit > 1000 {
		limit = h.defaultLimit
	}

	stats, err := h.runner.Run(c.Context(), limit)
	if err != nil {
		return err
	}

	return c.JSON(stats)
}
