package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/api/middleware"
	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
	"github.com/leadops-io/leadops/internal/signing"
)

// DestinationHandler handles webhook destination management
type DestinationHandler struct {
	destinations repository.DestinationRepositoryInterface
	dispatcher   *dispatch.Dispatcher
	guard        dispatch.URLGuard
	logger       *slog.Logger
}

func NewDestinationHandler(destinations repository.DestinationRepositoryInterface, dispatcher *dispatch.Dispatcher, guard dispatch.URLGuard, logger *slog.Logger) *DestinationHandler {
	return &DestinationHandler{
		destinations: destinations,
		dispatcher:   dispatcher,
		guard:        guard,
		logger:       logger,
	}
}

// DestinationRequest is the create/update payload
type DestinationRequest struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Events      []string          `json:"events"`
	Enabled     *bool             `json:"enabled"`
	MaxAttempts int               `json:"max_attempts"`
}

// DestinationResponse never includes the signing secret, only its prefix.
type DestinationResponse struct {
	*domain.Destination
	SigningSecret string `json:"signing_secret,omitempty"`
}

// Create POST /v1/destinations
func (h *DestinationHandler) Create(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	var req DestinationRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if req.Method == "" {
		req.Method = domain.MethodPost
	}

	dest := &domain.Destination{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        strings.TrimSpace(req.Name),
		URL:         strings.TrimSpace(req.URL),
		Method:      strings.ToLower(req.Method),
		Headers:     req.Headers,
		Events:      req.Events,
		Enabled:     true,
		MaxAttempts: req.MaxAttempts,
	}
	if req.Enabled != nil {
		dest.Enabled = *req.Enabled
	}

	if err := dest.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	if err := h.guard.AssertPublicURL(c.Context(), dest.URL); err != nil {
		return err
	}

	secret, err := signing.NewSigningSecret()
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}
	dest.SigningSecretHash = secret.Hash
	dest.SigningSecretPrefix = secret.Prefix

	if err := h.destinations.Create(c.Context(), dest); err != nil {
		return err
	}

	h.logger.Info("destination created",
		"destination_id", dest.ID,
		"workspace_id", workspaceID,
		"url", dest.URL)

	// The plaintext secret is surfaced exactly once.
	return c.Status(fiber.StatusCreated).JSON(DestinationResponse{
		Destination:   dest,
		SigningSecret: secret.Plain,
	})
}

// List GET /v1/destinations
func (h *DestinationHandler) List(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	destinations, err := h.destinations.List(c.Context(), workspaceID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"destinations": destinations})
}

// Get GET /v1/destinations/:id
func (h *DestinationHandler) Get(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	dest, err := h.destinations.GetByID(c.Context(), workspaceID, id)
	if err != nil {
		return err
	}

	return c.JSON(dest)
}

// Update PUT /v1/destinations/:id
func (h *DestinationHandler) Update(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	dest, err := h.destinations.GetByID(c.Context(), workspaceID, id)
	if err != nil {
		return err
	}

	var req DestinationRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if req.Name != "" {
		dest.Name = strings.TrimSpace(req.Name)
	}
	if req.URL != "" {
		dest.URL = strings.TrimSpace(req.URL)
	}
	if req.Method != "" {
		dest.Method = strings.ToLower(req.Method)
	}
	if req.Headers != nil {
		dest.Headers = req.Headers
	}
	if req.Events != nil {
		dest.Events = req.Events
	}
	if req.Enabled != nil {
		dest.Enabled = *req.Enabled
	}
	if req.MaxAttempts != 0 {
		dest.MaxAttempts = req.MaxAttempts
	}

	if err := dest.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	// The URL is re-guarded on every update, changed or not.
	if err := h.guard.AssertPublicURL(c.Context(), dest.URL); err != nil {
		return err
	}

	if err := h.destinations.Update(c.Context(), dest); err != nil {
		return err
	}

	return c.JSON(dest)
}

// Delete DELETE /v1/destinations/:id
func (h *DestinationHandler) Delete(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.destinations.Delete(c.Context(), workspaceID, id); err != nil {
		return err
	}

	h.logger.Info("destination deleted", "destination_id", id, "workspace_id", workspaceID)
	return c.SendStatus(fiber.StatusNoContent)
}

// RotateSecret POST /v1/destinations/:id/rotate-secret
func (h *DestinationHandler) RotateSecret(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	dest, err := h.destinations.GetByID(c.Context(), workspaceID, id)
	if err != nil {
		return err
	}

	secret, err := signing.NewSigningSecret()
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	if err := h.destinations.UpdateSecret(c.Context(), workspaceID, id, secret.Hash, secret.Prefix); err != nil {
		return err
	}

	h.logger.Info("signing secret rotated", "destination_id", id, "workspace_id", workspaceID)

	dest.SigningSecretPrefix = secret.Prefix
	return c.JSON(DestinationResponse{
		Destination:   dest,
		SigningSecret: secret.Plain,
	})
}

// TestRequest is the optional payload for a test send
type TestRequest struct {
	Payload map[string]any `json:"payload"`
}

// TestSendResponse reports the synchronous outcome of a test delivery
type TestSendResponse struct {
	DeliveryID string           `json:"delivery_id"`
	Result     *dispatch.Result `json:"result"`
}

// Test POST /v1/destinations/:id/test
func (h *DestinationHandler) Test(c *fiber.Ctx) error {
	workspaceID, err := middleware.GetWorkspaceID(c)
	if err != nil {
		return err
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var payload []byte
	if len(c.Body()) > 0 {
		var req TestRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.ErrBadRequest.WithError(err)
		}
		if req.Payload != nil {
			payload, err = json.Marshal(req.Payload)
			if err != nil {
				return domain.ErrBadRequest.WithError(err)
			}
		}
	}

	delivery, result, err := h.dispatcher.TestSend(c.Context(), workspaceID, id, payload)
	if err != nil {
		return err
	}

	return c.JSON(TestSendResponse{
		DeliveryID: delivery.ID.String(),
		Result:     result,
	})
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest.WithError(errors.New(name + " must be a valid UUID"))
	}
	return id, nil
}
