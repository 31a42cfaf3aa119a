package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadops-io/leadops/internal/domain"
)

type DeliveryRepository struct {
	pool PgxPool
}

func NewDeliveryRepository(pool PgxPool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

const deliveryColumns = `id, workspace_id, destination_id, lead_id, ingestion_id, event_type,
		payload, status, attempt_count, last_error, next_attempt_at, created_at, updated_at`

func (r *DeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	query := `
		INSERT INTO deliveries (id, workspace_id, destination_id, lead_id, ingestion_id,
			event_type, payload, status, attempt_count, last_error, next_attempt_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	if delivery.Status == "" {
		delivery.Status = domain.DeliveryPending
	}
	if !delivery.Status.Valid() {
		return domain.ErrValidationFailed.WithMessage(
			fmt.Sprintf("invalid delivery status %q", delivery.Status))
	}
	// A pending delivery without a schedule would never be claimed.
	if delivery.Status == domain.DeliveryPending && delivery.NextAttemptAt == nil {
		now := time.Now()
		delivery.NextAttemptAt = &now
	}

	err := r.pool.QueryRow(ctx, query,
		delivery.ID,
		delivery.WorkspaceID,
		delivery.DestinationID,
		delivery.LeadID,
		delivery.IngestionID,
		delivery.EventType,
		delivery.Payload,
		delivery.Status,
		delivery.AttemptCount,
		delivery.LastError,
		delivery.NextAttemptAt,
	).Scan(&delivery.CreatedAt, &delivery.UpdatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrDestinationNotFound
		}
		return fmt.Errorf("create delivery: %w", err)
	}

	return nil
}

func (r *DeliveryRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE id = $1 AND workspace_id = $2
	`

	delivery, err := scanDelivery(r.pool.QueryRow(ctx, query, id, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery by id: %w", err)
	}

	return delivery, nil
}

func (r *DeliveryRepository) List(ctx context.Context, filter DeliveryListFilter) ([]domain.Delivery, error) {
	where, args := deliveryFilterClauses(filter)

	limit := filter.Limit
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC
		LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, *delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}

	return deliveries, nil
}

// ClaimDue selects due retryable deliveries oldest-first and leases them by
// pushing next_attempt_at forward in the same statement. SKIP LOCKED keeps
// two overlapping scheduler runs from claiming the same row; the lease keeps
// a crashed run's rows invisible only until it expires.
func (r *DeliveryRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]domain.Delivery, error) {
	if limit < 1 {
		return nil, nil
	}

	query := `
		UPDATE deliveries
		SET next_attempt_at = NOW() + make_interval(secs => $2),
		    updated_at = NOW()
		WHERE id IN (
			SELECT id
			FROM deliveries
			WHERE status IN ('pending', 'failed') AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + deliveryColumns

	rows, err := r.pool.Query(ctx, query, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim due deliveries: %w", err)
	}
	defer rows.Close()

	var claimed []domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed delivery: %w", err)
		}
		claimed = append(claimed, *delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed deliveries: %w", err)
	}

	return claimed, nil
}

// MarkSuccess finalizes a delivery. The status guard keeps terminal rows
// terminal even if two dispatchers race.
func (r *DeliveryRepository) MarkSuccess(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int) error {
	query := `
		UPDATE deliveries
		SET status = 'success',
		    attempt_count = $3,
		    last_error = '',
		    next_attempt_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2 AND status IN ('pending', 'failed')
	`

	result, err := r.pool.Exec(ctx, query, id, workspaceID, attemptCount)
	if err != nil {
		return fmt.Errorf("mark delivery success: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

func (r *DeliveryRepository) MarkFailed(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int, lastError string, nextAttemptAt time.Time) error {
	query := `
		UPDATE deliveries
		SET status = 'failed',
		    attempt_count = $3,
		    last_error = $4,
		    next_attempt_at = $5,
		    updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2 AND status IN ('pending', 'failed')
	`

	result, err := r.pool.Exec(ctx, query, id, workspaceID, attemptCount, lastError, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

func (r *DeliveryRepository) MarkDeadLetter(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int, lastError string) error {
	query := `
		UPDATE deliveries
		SET status = 'dead_letter',
		    attempt_count = $3,
		    last_error = $4,
		    next_attempt_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2 AND status IN ('pending', 'failed')
	`

	result, err := r.pool.Exec(ctx, query, id, workspaceID, attemptCount, lastError)
	if err != nil {
		return fmt.Errorf("mark delivery dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// Replay requeues one delivery, including a dead-lettered one. Returns false
// when the delivery does not exist inside the workspace.
func (r *DeliveryRepository) Replay(ctx context.Context, workspaceID, id uuid.UUID) (bool, error) {
	query := `
		UPDATE deliveries
		SET status = 'pending',
		    next_attempt_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, workspaceID)
	if err != nil {
		return false, fmt.Errorf("replay delivery: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ReplayBulk requeues a filtered batch, bounded by filter.Limit. Every row
// touched belongs to filter.WorkspaceID.
func (r *DeliveryRepository) ReplayBulk(ctx context.Context, filter DeliveryListFilter) (int64, error) {
	where, args := deliveryFilterClauses(filter)

	limit := filter.Limit
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	query := `
		UPDATE deliveries
		SET status = 'pending',
		    next_attempt_at = NOW(),
		    updated_at = NOW()
		WHERE id IN (
			SELECT id
			FROM deliveries
			WHERE ` + strings.Join(where, " AND ") + `
			ORDER BY created_at ASC
			LIMIT ` + strconv.Itoa(limit) + `
		)
	`

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("replay deliveries bulk: %w", err)
	}

	return result.RowsAffected(), nil
}

func deliveryFilterClauses(filter DeliveryListFilter) ([]string, []interface{}) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{filter.WorkspaceID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DestinationID != nil {
		args = append(args, *filter.DestinationID)
		where = append(where, fmt.Sprintf("destination_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	return where, args
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var delivery domain.Delivery
	err := row.Scan(
		&delivery.ID,
		&delivery.WorkspaceID,
		&delivery.DestinationID,
		&delivery.LeadID,
		&delivery.IngestionID,
		&delivery.EventType,
		&delivery.Payload,
		&delivery.Status,
		&delivery.AttemptCount,
		&delivery.LastError,
		&delivery.NextAttemptAt,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}
