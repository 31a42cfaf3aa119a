package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/api/middleware"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/ratelimit"
	"github.com/leadops-io/leadops/internal/repository"
)

// SourceRateLimiter buckets ingestion per (workspace, source) by minute.
type SourceRateLimiter interface {
	Check(ctx context.Context, workspaceID uuid.UUID, source string, limit int) (ratelimit.Result, error)
}

// LeadHandler ingests leads and fans deliveries out to subscribed
// destinations.
type LeadHandler struct {
	leads         repository.LeadRepositoryInterface
	destinations  repository.DestinationRepositoryInterface
	deliveries    repository.DeliveryRepositoryInterface
	sourceLimiter SourceRateLimiter
	sourceLimit   int
	logger        *slog.Logger
}

func NewLeadHandler(leads repository.LeadRepositoryInterface, destinations repository.DestinationRepositoryInterface, deliveries repository.DeliveryRepositoryInterface, sourceLimiter SourceRateLimiter, sourceLimit int, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{
		leads:         leads,
		destinations:  destinations,
		deliveries:    deliveries,
		sourceLimiter: sourceLimiter,
		sourceLimit:   sourceLimit,
		logger:        logger,
	}
}

// LeadRequest is the ingestion payload
type LeadRequest struct {
	Email  string         `json:"email"`
	Name   string         `json:"name"`
	Source string         `json:"source"`
	Fields map[string]any `json:"fields"`
}

// LeadResponse reports the stored lead and how many deliveries were queued
type LeadResponse struct {
	Lead      *domain.Lead `json:"lead"`
	Duplicate bool         `json:"duplicate"`
	Queued    int          `json:"queued"`
}

// Create POST /v1/leads
func (h *LeadHandler) Create(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	var req LeadRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}

	result, err := h.sourceLimiter.Check(c.Context(), workspaceID, source, h.sourceLimit)
	if err != nil {
		h.logger.Warn("source rate limiter unavailable", "error", err, "workspace_id", workspaceID)
	} else if result.Limited {
		c.Locals(middleware.LocalRetryAfter, result.RetryAfterSeconds)
		return domain.ErrRateLimitExceeded
	}

	lead := &domain.Lead{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Email:       strings.TrimSpace(req.Email),
		Name:        strings.TrimSpace(req.Name),
		Source:      source,
	}
	if req.Fields != nil {
		fields, err := json.Marshal(req.Fields)
		if err != nil {
			return domain.ErrBadRequest.WithError(err)
		}
		lead.Fields = fields
	}
	if key := strings.TrimSpace(c.Get("Idempotency-Key")); key != "" {
		lead.IngestionID = &key
	}

	if err := lead.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	created, err := h.leads.Create(c.Context(), lead)
	if err != nil {
		return err
	}

	// A replayed Idempotency-Key returns the stored lead and queues
	// nothing.
	if !created {
		return c.JSON(LeadResponse{Lead: lead, Duplicate: true})
	}

	queued, err := h.fanOut(c.Context(), lead)
	if err != nil {
		// The lead is stored; a fan-out failure must not look like a
		// rejected ingestion.
		h.logger.Error("delivery fan-out failed",
			"error", err,
			"lead_id", lead.ID,
			"workspace_id", workspaceID)
	}

	h.logger.Info("lead ingested",
		"lead_id", lead.ID,
		"workspace_id", workspaceID,
		"source", source,
		"queued", queued)

	return c.Status(fiber.StatusCreated).JSON(LeadResponse{
		Lead:   lead,
		Queued: queued,
	})
}

// fanOut queues one pending delivery per destination subscribed to
// lead.created.
func (h *LeadHandler) fanOut(ctx context.Context, lead *domain.Lead) (int, error) {
	destinations, err := h.destinations.ListEnabledByEvent(ctx, lead.WorkspaceID, domain.EventLeadCreated)
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	queued := 0
	for i := range destinations {
		delivery := &domain.Delivery{
			ID:            uuid.New(),
			WorkspaceID:   lead.WorkspaceID,
			DestinationID: destinations[i].ID,
			LeadID:        &lead.ID,
			IngestionID:   lead.IngestionID,
			EventType:     domain.EventLeadCreated,
			Payload:       payload,
			Status:        domain.DeliveryPending,
			NextAttemptAt: &now,
		}
		if err := h.deliveries.Create(ctx, delivery); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// Get GET /v1/leads/:id
func (h *LeadHandler) Get(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	lead, err := h.leads.GetByID(c.Context(), workspaceID, id)
	if err != nil {
		return err
	}

	return c.JSON(lead)
}
