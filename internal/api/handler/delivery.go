package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/api/middleware"
	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// DeliveryHandler exposes the delivery audit trail and replay operations
type DeliveryHandler struct {
	deliveries repository.DeliveryRepositoryInterface
	attempts   repository.AttemptRepositoryInterface
	dispatcher *dispatch.Dispatcher
	stagger    time.Duration
	logger     *slog.Logger
}

func NewDeliveryHandler(deliveries repository.DeliveryRepositoryInterface, attempts repository.AttemptRepositoryInterface, dispatcher *dispatch.Dispatcher, stagger time.Duration, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		deliveries: deliveries,
		attempts:   attempts,
		dispatcher: dispatcher,
		stagger:    stagger,
		logger:     logger,
	}
}

func parseListFilter(c *fiber.Ctx, workspaceID uuid.UUID) (repository.DeliveryListFilter, error) {
	filter := repository.DeliveryListFilter{
		WorkspaceID: workspaceID,
		Limit:       defaultPageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.DeliveryStatus(s)
		if !status.Valid() {
			return filter, domain.ErrValidationFailed.WithError(errors.New("invalid status filter"))
		}
		filter.Status = &status
	}
	if d := c.Query("destination_id"); d != "" {
		id, err := uuid.Parse(d)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("destination_id must be a valid UUID"))
		}
		filter.DestinationID = &id
	}
	if f := c.Query("from"); f != "" {
		ts, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("from must be RFC3339"))
		}
		filter.From = &ts
	}
	if u := c.Query("to"); u != "" {
		ts, err := time.Parse(time.RFC3339, u)
		if err != nil {
			return filter, domain.ErrValidationFailed.WithError(errors.New("to must be RFC3339"))
		}
		filter.To = &ts
	}

	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	filter.Limit = limit

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	filter.Offset = offset

	return filter, nil
}

// List GET /v1/deliveries
func (h *DeliveryHandler) List(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	filter, err := parseListFilter(c, workspaceID)
	if err != nil {
		return err
	}

	deliveries, err := h.deliveries.List(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"deliveries": deliveries,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

// DeliveryDetailResponse pairs a delivery with its attempt history
type DeliveryDetailResponse struct {
	Delivery *domain.Delivery         `json:"delivery"`
	Attempts []domain.DeliveryAttempt `json:"attempts"`
}

// Get GET /v1/deliveries/:id
func (h *DeliveryHandler) Get(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	delivery, err := h.deliveries.GetByID(c.Context(), workspaceID, id)
	if err != nil {
		return err
	}

	attempts, err := h.attempts.ListByDelivery(c.Context(), workspaceID, id)
	if err != nil {
		return err
	}

	return c.JSON(DeliveryDetailResponse{
		Delivery: delivery,
		Attempts: attempts,
	})
}

// Replay POST /v1/deliveries/:id/replay
func (h *DeliveryHandler) Replay(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.dispatcher.Replay(c.Context(), workspaceID, id); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"replayed": true})
}

// ReplayBulk POST /v1/deliveries/replay-bulk
func (h *DeliveryHandler) ReplayBulk(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	filter, err := parseListFilter(c, workspaceID)
	if err != nil {
		return err
	}

	count, err := h.dispatcher.ReplayBulk(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"replayed": count})
}

// SendAllLeadsRequest selects the destination to backfill
type SendAllLeadsRequest struct {
	DestinationID string `json:"destination_id"`
}

// SendAllLeads POST /v1/deliveries/send-all-leads
func (h *DeliveryHandler) SendAllLeads(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	var req SendAllLeadsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	destinationID, err := uuid.Parse(req.DestinationID)
	if err != nil {
		return domain.ErrValidationFailed.WithError(errors.New("destination_id must be a valid UUID"))
	}

	queued, err := h.dispatcher.EnqueueAllLeads(c.Context(), workspaceID, destinationID, h.stagger)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": queued})
}
