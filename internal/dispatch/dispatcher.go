package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
)

// URLGuard validates destination URLs before any socket is opened.
// *urlguard.Guard satisfies it.
type URLGuard interface {
	AssertPublicURL(ctx context.Context, rawURL string) error
}

// Result is the outcome of dispatching one delivery.
type Result struct {
	Success    bool                  `json:"success"`
	Status     domain.DeliveryStatus `json:"status"`
	StatusCode *int                  `json:"status_code,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Dispatcher drives the delivery state machine: it sends the webhook,
// records the attempt and advances the delivery to success, failed or
// dead_letter.
type Dispatcher struct {
	deliveries   repository.DeliveryRepositoryInterface
	attempts     repository.AttemptRepositoryInterface
	destinations repository.DestinationRepositoryInterface
	leads        repository.LeadRepositoryInterface
	sender       *Sender
	guard        URLGuard
	backoff      BackoffPolicy
	maxAttempts  int
	logger       *slog.Logger
	now          func() time.Time
}

type Deps struct {
	Deliveries   repository.DeliveryRepositoryInterface
	Attempts     repository.AttemptRepositoryInterface
	Destinations repository.DestinationRepositoryInterface
	Leads        repository.LeadRepositoryInterface
	Sender       *Sender
	Guard        URLGuard
	Backoff      BackoffPolicy
	MaxAttempts  int
	Logger       *slog.Logger
}

func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{
		deliveries:   deps.Deliveries,
		attempts:     deps.Attempts,
		destinations: deps.Destinations,
		leads:        deps.Leads,
		sender:       deps.Sender,
		guard:        deps.Guard,
		backoff:      deps.Backoff,
		maxAttempts:  deps.MaxAttempts,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// envelope is the JSON body sent to destinations.
type envelope struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	LeadID      *uuid.UUID      `json:"lead_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

func (d *Dispatcher) buildBody(delivery *domain.Delivery) ([]byte, error) {
	data := delivery.Payload
	if len(data) == 0 {
		data = []byte("{}")
	}
	return json.Marshal(envelope{
		ID:          delivery.ID,
		Type:        delivery.EventType,
		WorkspaceID: delivery.WorkspaceID,
		LeadID:      delivery.LeadID,
		Timestamp:   d.now().UTC(),
		Data:        data,
	})
}

// Dispatch loads a delivery, performs one attempt against its destination
// and advances the state machine. It is the single path both the scheduler
// and manual replays funnel through.
func (d *Dispatcher) Dispatch(ctx context.Context, workspaceID, deliveryID uuid.UUID) (*Result, error) {
	delivery, err := d.deliveries.GetByID(ctx, workspaceID, deliveryID)
	if err != nil {
		return nil, err
	}
	return d.attemptDelivery(ctx, delivery)
}

// DispatchClaimed runs an attempt on a row already leased by ClaimDue,
// skipping the reload.
func (d *Dispatcher) DispatchClaimed(ctx context.Context, delivery *domain.Delivery) (*Result, error) {
	return d.attemptDelivery(ctx, delivery)
}

func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *domain.Delivery) (*Result, error) {
	if delivery.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	dest, err := d.destinations.GetByID(ctx, delivery.WorkspaceID, delivery.DestinationID)
	if err != nil {
		// A destination deleted under a pending delivery fails it
		// permanently without burning an attempt.
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code == domain.ErrDestinationNotFound.Code {
			return d.failWithoutAttempt(ctx, delivery, "destination no longer exists")
		}
		return nil, err
	}
	if !dest.Enabled {
		return d.failWithoutAttempt(ctx, delivery, "destination is disabled")
	}

	attemptNumber := delivery.AttemptCount + 1

	// Destinations are guarded at write time, but DNS changes between
	// then and now. Re-check on every dispatch.
	if err := d.guard.AssertPublicURL(ctx, dest.URL); err != nil {
		started := d.now()
		return d.recordFailure(ctx, delivery, dest, &domain.DeliveryAttempt{
			DeliveryID:    delivery.ID,
			WorkspaceID:   delivery.WorkspaceID,
			AttemptNumber: attemptNumber,
			Error:         fmt.Sprintf("destination url rejected: %v", err),
			StartedAt:     started,
			FinishedAt:    d.now(),
		})
	}

	body, err := d.buildBody(delivery)
	if err != nil {
		return nil, fmt.Errorf("build delivery payload: %w", err)
	}

	res := d.sender.Send(ctx, dest, delivery.ID, delivery.EventType, body)

	attempt := &domain.DeliveryAttempt{
		DeliveryID:     delivery.ID,
		WorkspaceID:    delivery.WorkspaceID,
		AttemptNumber:  attemptNumber,
		RequestPayload: body,
		ResponseStatus: res.StatusCode,
		ResponseBody:   res.Body,
		Error:          res.Error,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
	}

	if res.Succeeded() {
		if err := d.attempts.Insert(ctx, attempt); err != nil {
			return nil, err
		}
		if err := d.deliveries.MarkSuccess(ctx, delivery.WorkspaceID, delivery.ID, attemptNumber); err != nil {
			return nil, err
		}
		d.logger.Info("delivery succeeded",
			"delivery_id", delivery.ID,
			"workspace_id", delivery.WorkspaceID,
			"attempt", attemptNumber,
			"status_code", *res.StatusCode)
		return &Result{Success: true, Status: domain.DeliverySuccess, StatusCode: res.StatusCode}, nil
	}

	attempt.Error = res.Describe()
	return d.recordFailure(ctx, delivery, dest, attempt)
}

// recordFailure inserts the attempt row and moves the delivery to failed or
// dead_letter depending on the attempt budget.
func (d *Dispatcher) recordFailure(ctx context.Context, delivery *domain.Delivery, dest *domain.Destination, attempt *domain.DeliveryAttempt) (*Result, error) {
	if err := d.attempts.Insert(ctx, attempt); err != nil {
		return nil, err
	}

	limit := d.maxAttempts
	if dest.MaxAttempts > 0 {
		limit = dest.MaxAttempts
	}

	if attempt.AttemptNumber >= limit {
		if err := d.deliveries.MarkDeadLetter(ctx, delivery.WorkspaceID, delivery.ID, attempt.AttemptNumber, attempt.Error); err != nil {
			return nil, err
		}
		d.logger.Warn("delivery dead-lettered",
			"delivery_id", delivery.ID,
			"workspace_id", delivery.WorkspaceID,
			"attempts", attempt.AttemptNumber,
			"error", attempt.Error)
		return &Result{Status: domain.DeliveryDeadLetter, StatusCode: attempt.ResponseStatus, Error: attempt.Error}, nil
	}

	nextAt := d.now().Add(d.backoff.Next(attempt.AttemptNumber))
	if err := d.deliveries.MarkFailed(ctx, delivery.WorkspaceID, delivery.ID, attempt.AttemptNumber, attempt.Error, nextAt); err != nil {
		return nil, err
	}
	d.logger.Info("delivery attempt failed",
		"delivery_id", delivery.ID,
		"workspace_id", delivery.WorkspaceID,
		"attempt", attempt.AttemptNumber,
		"next_attempt_at", nextAt,
		"error", attempt.Error)
	return &Result{Status: domain.DeliveryFailed, StatusCode: attempt.ResponseStatus, Error: attempt.Error}, nil
}

// failWithoutAttempt parks a delivery whose destination is gone or disabled.
// No attempt row is written and the count does not move, so re-enabling the
// destination lets a replay pick the delivery back up.
func (d *Dispatcher) failWithoutAttempt(ctx context.Context, delivery *domain.Delivery, reason string) (*Result, error) {
	nextAt := d.now().Add(d.backoff.Next(delivery.AttemptCount + 1))
	if err := d.deliveries.MarkFailed(ctx, delivery.WorkspaceID, delivery.ID, delivery.AttemptCount, reason, nextAt); err != nil {
		return nil, err
	}
	d.logger.Warn("delivery parked without attempt",
		"delivery_id", delivery.ID,
		"workspace_id", delivery.WorkspaceID,
		"reason", reason)
	return &Result{Status: domain.DeliveryFailed, Error: reason}, nil
}

// TestSend creates a one-off delivery against a destination and dispatches
// it synchronously. The attempt is numbered 0 so it never counts against
// the retry budget of scheduled traffic.
func (d *Dispatcher) TestSend(ctx context.Context, workspaceID, destinationID uuid.UUID, payload []byte) (*domain.Delivery, *Result, error) {
	dest, err := d.destinations.GetByID(ctx, workspaceID, destinationID)
	if err != nil {
		return nil, nil, err
	}
	if !dest.Enabled {
		return nil, nil, domain.ErrDestinationDisabled
	}
	if err := d.guard.AssertPublicURL(ctx, dest.URL); err != nil {
		return nil, nil, err
	}

	if len(payload) == 0 {
		payload = []byte(`{"test":true}`)
	}

	delivery := &domain.Delivery{
		ID:            uuid.New(),
		WorkspaceID:   workspaceID,
		DestinationID: destinationID,
		EventType:     domain.EventTestSend,
		Payload:       payload,
		Status:        domain.DeliveryPending,
	}
	if err := d.deliveries.Create(ctx, delivery); err != nil {
		return nil, nil, err
	}

	body, err := d.buildBody(delivery)
	if err != nil {
		return nil, nil, fmt.Errorf("build delivery payload: %w", err)
	}

	res := d.sender.Send(ctx, dest, delivery.ID, delivery.EventType, body)

	attempt := &domain.DeliveryAttempt{
		DeliveryID:     delivery.ID,
		WorkspaceID:    workspaceID,
		AttemptNumber:  0,
		RequestPayload: body,
		ResponseStatus: res.StatusCode,
		ResponseBody:   res.Body,
		Error:          res.Error,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
	}
	if err := d.attempts.Insert(ctx, attempt); err != nil {
		return nil, nil, err
	}

	if res.Succeeded() {
		if err := d.deliveries.MarkSuccess(ctx, workspaceID, delivery.ID, 1); err != nil {
			return nil, nil, err
		}
		return delivery, &Result{Success: true, Status: domain.DeliverySuccess, StatusCode: res.StatusCode}, nil
	}

	if err := d.deliveries.MarkFailed(ctx, workspaceID, delivery.ID, 1, res.Describe(), d.now().Add(d.backoff.Next(1))); err != nil {
		return nil, nil, err
	}
	return delivery, &Result{Status: domain.DeliveryFailed, StatusCode: res.StatusCode, Error: res.Describe()}, nil
}

// Replay re-queues a terminal delivery for immediate dispatch. The attempt
// history and count are kept for audit; only status and schedule move.
func (d *Dispatcher) Replay(ctx context.Context, workspaceID, deliveryID uuid.UUID) error {
	ok, err := d.deliveries.Replay(ctx, workspaceID, deliveryID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrDeliveryNotFound
	}
	d.logger.Info("delivery replayed", "delivery_id", deliveryID, "workspace_id", workspaceID)
	return nil
}

// ReplayBulk re-queues every delivery matching the filter and returns how
// many rows moved.
func (d *Dispatcher) ReplayBulk(ctx context.Context, filter repository.DeliveryListFilter) (int64, error) {
	n, err := d.deliveries.ReplayBulk(ctx, filter)
	if err != nil {
		return 0, err
	}
	d.logger.Info("deliveries replayed in bulk", "workspace_id", filter.WorkspaceID, "count", n)
	return n, nil
}

// EnqueueAllLeads creates a pending delivery per existing lead for one
// destination, staggered so a large workspace does not land on the target
// all at once. Returns the number of deliveries queued.
func (d *Dispatcher) EnqueueAllLeads(ctx context.Context, workspaceID, destinationID uuid.UUID, stagger time.Duration) (int, error) {
	dest, err := d.destinations.GetByID(ctx, workspaceID, destinationID)
	if err != nil {
		return 0, err
	}
	if !dest.Enabled {
		return 0, domain.ErrDestinationDisabled
	}

	leads, err := d.leads.List(ctx, workspaceID)
	if err != nil {
		return 0, err
	}

	queued := 0
	for i := range leads {
		lead := &leads[i]
		payload, err := json.Marshal(lead)
		if err != nil {
			return queued, fmt.Errorf("marshal lead %s: %w", lead.ID, err)
		}
		at := d.now().Add(time.Duration(i) * stagger)
		delivery := &domain.Delivery{
			ID:            uuid.New(),
			WorkspaceID:   workspaceID,
			DestinationID: destinationID,
			LeadID:        &lead.ID,
			EventType:     domain.EventLeadCreated,
			Payload:       payload,
			Status:        domain.DeliveryPending,
			NextAttemptAt: &at,
		}
		if err := d.deliveries.Create(ctx, delivery); err != nil {
			return queued, err
		}
		queued++
	}
	d.logger.Info("backfill queued",
		"workspace_id", workspaceID,
		"destination_id", destinationID,
		"deliveries", queued)
	return queued, nil
}
