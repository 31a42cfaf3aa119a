package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/signing"
)

const (
	// LocalWorkspaceID is the key to retrieve workspace_id from context
	LocalWorkspaceID = "workspace_id"
	// LocalWorkspace is the key to retrieve the full workspace from context
	LocalWorkspace = "workspace"
)

// WorkspaceRepository interface for workspace lookup
type WorkspaceRepository interface {
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Workspace, error)
}

// Auth creates an authentication middleware using API Key
func Auth(workspaceRepo WorkspaceRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractBearerToken(c)
		if apiKey == "" {
			return domain.ErrUnauthorized
		}

		hash := signing.HashKey(apiKey)

		// Any lookup error returns 401. Don't reveal whether the key
		// exists or not.
		workspace, err := workspaceRepo.GetByAPIKeyHash(c.Context(), hash)
		if err != nil {
			return domain.ErrUnauthorized
		}

		if !workspace.IsActive {
			return domain.ErrUnauthorized
		}

		c.Locals(LocalWorkspaceID, workspace.ID)
		c.Locals(LocalWorkspace, workspace)

		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// GetWorkspaceID retrieves workspace_id from Fiber context
func GetWorkspaceID(c *fiber.Ctx) (uuid.UUID, error) {
	workspaceID, ok := c.Locals(LocalWorkspaceID).(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return workspaceID, nil
}

// GetWorkspace retrieves the full workspace from Fiber context
func GetWorkspace(c *fiber.Ctx) (*domain.Workspace, error) {
	workspace, ok := c.Locals(LocalWorkspace).(*domain.Workspace)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return workspace, nil
}
