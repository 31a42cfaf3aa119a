package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadops-io/leadops/internal/domain"
)

type LeadRepository struct {
	pool PgxPool
}

func NewLeadRepository(pool PgxPool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

// Create inserts a lead. When the lead carries an ingestion id and a row
// with the same (workspace, ingestion) key already exists, the insert is a
// no-op: the existing row is loaded into the argument and false is
// returned. This is what makes inbound ingestion idempotent.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) (bool, error) {
	if err := lead.Validate(); err != nil {
		return false, domain.ErrValidationFailed.WithError(err)
	}

	query := `
		INSERT INTO leads (id, workspace_id, email, name, source, ingestion_id, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (workspace_id, ingestion_id) WHERE ingestion_id IS NOT NULL
		DO NOTHING
		RETURNING created_at, updated_at
	`

	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		lead.ID,
		lead.WorkspaceID,
		lead.Email,
		lead.Name,
		lead.Source,
		lead.IngestionID,
		lead.Fields,
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		if lead.IngestionID == nil {
			return false, fmt.Errorf("create lead: insert returned no row")
		}
		// Conflict: the same ingestion was already accepted.
		existing, lookupErr := r.getByIngestionID(ctx, lead.WorkspaceID, *lead.IngestionID)
		if lookupErr != nil {
			return false, lookupErr
		}
		*lead = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lead: %w", err)
	}

	return true, nil
}

func (r *LeadRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Lead, error) {
	query := `
		SELECT id, workspace_id, email, name, source, ingestion_id, fields, created_at, updated_at
		FROM leads
		WHERE id = $1 AND workspace_id = $2
	`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead by id: %w", err)
	}

	return lead, nil
}

// List returns every lead in the workspace, oldest first. Used by the
// send-all-leads bulk enqueue.
func (r *LeadRepository) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Lead, error) {
	query := `
		SELECT id, workspace_id, email, name, source, ingestion_id, fields, created_at, updated_at
		FROM leads
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	return leads, nil
}

func (r *LeadRepository) getByIngestionID(ctx context.Context, workspaceID uuid.UUID, ingestionID string) (*domain.Lead, error) {
	query := `
		SELECT id, workspace_id, email, name, source, ingestion_id, fields, created_at, updated_at
		FROM leads
		WHERE workspace_id = $1 AND ingestion_id = $2
	`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, workspaceID, ingestionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead by ingestion id: %w", err)
	}

	return lead, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID,
		&lead.WorkspaceID,
		&lead.Email,
		&lead.Name,
		&lead.Source,
		&lead.IngestionID,
		&lead.Fields,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
