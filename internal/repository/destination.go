package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadops-io/leadops/internal/domain"
)

type DestinationRepository struct {
	pool PgxPool
}

func NewDestinationRepository(pool PgxPool) *DestinationRepository {
	return &DestinationRepository{pool: pool}
}

const destinationColumns = `id, workspace_id, name, url, method, headers, enabled, events,
		signing_secret_hash, signing_secret_prefix, max_attempts, created_at, updated_at`

func (r *DestinationRepository) Create(ctx context.Context, dest *domain.Destination) error {
	if err := dest.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	headersJSON, eventsJSON, err := marshalDestinationJSON(dest)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO destinations (id, workspace_id, name, url, method, headers, enabled, events,
			signing_secret_hash, signing_secret_prefix, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if dest.ID == uuid.Nil {
		dest.ID = uuid.New()
	}

	err = r.pool.QueryRow(ctx, query,
		dest.ID,
		dest.WorkspaceID,
		dest.Name,
		dest.URL,
		strings.ToLower(dest.Method),
		headersJSON,
		dest.Enabled,
		eventsJSON,
		dest.SigningSecretHash,
		dest.SigningSecretPrefix,
		dest.MaxAttempts,
	).Scan(&dest.CreatedAt, &dest.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	return nil
}

func (r *DestinationRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Destination, error) {
	query := `
		SELECT ` + destinationColumns + `
		FROM destinations
		WHERE id = $1 AND workspace_id = $2
	`

	dest, err := scanDestination(r.pool.QueryRow(ctx, query, id, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDestinationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get destination by id: %w", err)
	}

	return dest, nil
}

func (r *DestinationRepository) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Destination, error) {
	query := `
		SELECT ` + destinationColumns + `
		FROM destinations
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	return collectDestinations(rows)
}

// ListEnabledByEvent finds the enabled destinations subscribed to an event
// type, for fan-out at ingestion time.
func (r *DestinationRepository) ListEnabledByEvent(ctx context.Context, workspaceID uuid.UUID, eventType string) ([]domain.Destination, error) {
	query := `
		SELECT ` + destinationColumns + `
		FROM destinations
		WHERE workspace_id = $1 AND enabled = true AND events @> $2::jsonb
	`

	eventsJSON, _ := json.Marshal([]string{eventType})

	rows, err := r.pool.Query(ctx, query, workspaceID, eventsJSON)
	if err != nil {
		return nil, fmt.Errorf("list destinations by event: %w", err)
	}
	defer rows.Close()

	return collectDestinations(rows)
}

func (r *DestinationRepository) Update(ctx context.Context, dest *domain.Destination) error {
	if err := dest.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	headersJSON, eventsJSON, err := marshalDestinationJSON(dest)
	if err != nil {
		return err
	}

	query := `
		UPDATE destinations
		SET name = $3,
		    url = $4,
		    method = $5,
		    headers = $6,
		    enabled = $7,
		    events = $8,
		    max_attempts = $9,
		    updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		dest.ID,
		dest.WorkspaceID,
		dest.Name,
		dest.URL,
		strings.ToLower(dest.Method),
		headersJSON,
		dest.Enabled,
		eventsJSON,
		dest.MaxAttempts,
	)
	if err != nil {
		return fmt.Errorf("update destination: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrDestinationNotFound
	}

	return nil
}

// UpdateSecret rotates the stored signing secret material.
func (r *DestinationRepository) UpdateSecret(ctx context.Context, workspaceID, id uuid.UUID, secretHash, secretPrefix string) error {
	query := `
		UPDATE destinations
		SET signing_secret_hash = $3,
		    signing_secret_prefix = $4,
		    updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, workspaceID, secretHash, secretPrefix)
	if err != nil {
		return fmt.Errorf("update destination secret: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrDestinationNotFound
	}

	return nil
}

func (r *DestinationRepository) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	query := `DELETE FROM destinations WHERE id = $1 AND workspace_id = $2`

	result, err := r.pool.Exec(ctx, query, id, workspaceID)
	if err != nil {
		return fmt.Errorf("delete destination: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrDestinationNotFound
	}

	return nil
}

func marshalDestinationJSON(dest *domain.Destination) ([]byte, []byte, error) {
	headers := dest.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal headers: %w", err)
	}

	eventsJSON, err := json.Marshal(dest.Events)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal events: %w", err)
	}

	return headersJSON, eventsJSON, nil
}

func scanDestination(row pgx.Row) (*domain.Destination, error) {
	var dest domain.Destination
	var headersJSON, eventsJSON []byte

	err := row.Scan(
		&dest.ID,
		&dest.WorkspaceID,
		&dest.Name,
		&dest.URL,
		&dest.Method,
		&headersJSON,
		&dest.Enabled,
		&eventsJSON,
		&dest.SigningSecretHash,
		&dest.SigningSecretPrefix,
		&dest.MaxAttempts,
		&dest.CreatedAt,
		&dest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(headersJSON, &dest.Headers); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &dest.Events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}

	return &dest, nil
}

func collectDestinations(rows pgx.Rows) ([]domain.Destination, error) {
	var destinations []domain.Destination
	for rows.Next() {
		dest, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		destinations = append(destinations, *dest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destinations: %w", err)
	}
	return destinations, nil
}
