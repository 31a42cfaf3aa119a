package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/domain"
)

// WorkspaceRepositoryInterface defines operations for workspace data access
type WorkspaceRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Workspace, error)
	Create(ctx context.Context, workspace *domain.Workspace) error
}

// APIKeyRepositoryInterface defines operations for API key data access
type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
	Revoke(ctx context.Context, workspaceID, id uuid.UUID) error
}

// DestinationRepositoryInterface defines operations for destination data access
type DestinationRepositoryInterface interface {
	Create(ctx context.Context, dest *domain.Destination) error
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Destination, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Destination, error)
	ListEnabledByEvent(ctx context.Context, workspaceID uuid.UUID, eventType string) ([]domain.Destination, error)
	Update(ctx context.Context, dest *domain.Destination) error
	UpdateSecret(ctx context.Context, workspaceID, id uuid.UUID, secretHash, secretPrefix string) error
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// DeliveryListFilter narrows delivery listings. WorkspaceID is mandatory;
// nil fields are not applied.
type DeliveryListFilter struct {
	WorkspaceID   uuid.UUID
	Status        *domain.DeliveryStatus
	DestinationID *uuid.UUID
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// DeliveryRepositoryInterface defines operations for delivery data access
type DeliveryRepositoryInterface interface {
	Create(ctx context.Context, delivery *domain.Delivery) error
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Delivery, error)
	List(ctx context.Context, filter DeliveryListFilter) ([]domain.Delivery, error)
	// ClaimDue atomically selects due deliveries and pushes their
	// next_attempt_at forward by the lease, so overlapping scheduler runs
	// never double-dispatch a row.
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]domain.Delivery, error)
	MarkSuccess(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int) error
	MarkFailed(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int, lastError string, nextAttemptAt time.Time) error
	MarkDeadLetter(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int, lastError string) error
	Replay(ctx context.Context, workspaceID, id uuid.UUID) (bool, error)
	ReplayBulk(ctx context.Context, filter DeliveryListFilter) (int64, error)
}

// AttemptRepositoryInterface defines operations for delivery attempt data access
type AttemptRepositoryInterface interface {
	Insert(ctx context.Context, attempt *domain.DeliveryAttempt) error
	ListByDelivery(ctx context.Context, workspaceID, deliveryID uuid.UUID) ([]domain.DeliveryAttempt, error)
	CountByDelivery(ctx context.Context, workspaceID, deliveryID uuid.UUID) (int, error)
}

// LeadRepositoryInterface defines operations for lead data access
type LeadRepositoryInterface interface {
	// Create inserts the lead. It returns false without error when a lead
	// with the same (workspace, ingestion) key already exists, in which
	// case the existing row is loaded into the argument.
	Create(ctx context.Context, lead *domain.Lead) (bool, error)
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Lead, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Lead, error)
}
