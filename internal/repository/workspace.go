package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadops-io/leadops/internal/domain"
)

type WorkspaceRepository struct {
	pool PgxPool
}

func NewWorkspaceRepository(pool PgxPool) *WorkspaceRepository {
	return &WorkspaceRepository{pool: pool}
}

func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	query := `
		SELECT id, name, slug, is_active, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`

	var ws domain.Workspace
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ws.ID,
		&ws.Name,
		&ws.Slug,
		&ws.IsActive,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace by id: %w", err)
	}

	return &ws, nil
}

// GetByAPIKeyHash resolves the workspace owning an active API key. Inactive
// keys and inactive workspaces both miss, indistinguishably from a wrong key.
func (r *WorkspaceRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Workspace, error) {
	query := `
		SELECT w.id, w.name, w.slug, w.is_active, w.created_at, w.updated_at
		FROM workspaces w
		INNER JOIN api_keys ak ON ak.workspace_id = w.id
		WHERE ak.key_hash = $1 AND ak.is_active = true AND w.is_active = true
	`

	var ws domain.Workspace
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&ws.ID,
		&ws.Name,
		&ws.Slug,
		&ws.IsActive,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace by api key: %w", err)
	}

	return &ws, nil
}

func (r *WorkspaceRepository) Create(ctx context.Context, ws *domain.Workspace) error {
	if err := ws.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	query := `
		INSERT INTO workspaces (id, name, slug, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query, ws.ID, ws.Name, ws.Slug, ws.IsActive).
		Scan(&ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.AppError{
				Code:       "WORKSPACE_ALREADY_EXISTS",
				Message:    "Workspace with this slug already exists",
				StatusCode: 409,
			}
		}
		return fmt.Errorf("create workspace: %w", err)
	}

	return nil
}
