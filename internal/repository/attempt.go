package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/domain"
)

type AttemptRepository struct {
	pool PgxPool
}

func NewAttemptRepository(pool PgxPool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Insert appends one attempt record. Attempts are never updated or deleted;
// the unique (delivery_id, attempt_number) index enforces the numbering
// invariant at the database level.
func (r *AttemptRepository) Insert(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `
		INSERT INTO delivery_attempts (id, delivery_id, workspace_id, attempt_number,
			request_payload, response_status, response_body, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.DeliveryID,
		attempt.WorkspaceID,
		attempt.AttemptNumber,
		attempt.RequestPayload,
		attempt.ResponseStatus,
		attempt.ResponseBody,
		attempt.Error,
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.AppError{
				Code:       "ATTEMPT_ALREADY_RECORDED",
				Message:    "Attempt number already recorded for this delivery",
				StatusCode: 409,
			}
		}
		return fmt.Errorf("insert delivery attempt: %w", err)
	}

	return nil
}

func (r *AttemptRepository) ListByDelivery(ctx context.Context, workspaceID, deliveryID uuid.UUID) ([]domain.DeliveryAttempt, error) {
	query := `
		SELECT id, delivery_id, workspace_id, attempt_number, request_payload,
			response_status, response_body, error, started_at, finished_at
		FROM delivery_attempts
		WHERE delivery_id = $1 AND workspace_id = $2
		ORDER BY attempt_number ASC
	`

	rows, err := r.pool.Query(ctx, query, deliveryID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		err := rows.Scan(
			&a.ID,
			&a.DeliveryID,
			&a.WorkspaceID,
			&a.AttemptNumber,
			&a.RequestPayload,
			&a.ResponseStatus,
			&a.ResponseBody,
			&a.Error,
			&a.StartedAt,
			&a.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery attempts: %w", err)
	}

	return attempts, nil
}

func (r *AttemptRepository) CountByDelivery(ctx context.Context, workspaceID, deliveryID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM delivery_attempts
		WHERE delivery_id = $1 AND workspace_id = $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, deliveryID, workspaceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count delivery attempts: %w", err)
	}

	return count, nil
}
