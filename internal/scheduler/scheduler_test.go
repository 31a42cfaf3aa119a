package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
	"github.com/leadops-io/leadops/internal/signing"
)

// MockDeliveryRepo is a mock implementation of DeliveryRepositoryInterface
type MockDeliveryRepo struct {
	mock.Mock
}

func (m *MockDeliveryRepo) Create(ctx context.Context, delivery *domain.Delivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Delivery, error) {
	args := m.Called(ctx, workspaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepo) List(ctx context.Context, filter repository.DeliveryListFilter) ([]domain.Delivery, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepo) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]domain.Delivery, error) {
	args := m.Called(ctx, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepo) MarkSuccess(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int) error {
	args := m.Called(ctx, workspaceID, id, attemptCount)
	return args.Error(0)
}

func (m *MockDeliveryRepo) MarkFailed(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int, lastError string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, workspaceID, id, attemptCount, lastError, nextAttemptAt)
	return args.Error(0)
}

func (m *MockDeliveryRepo) MarkDeadLetter(ctx context.Context, workspaceID, id uuid.UUID, attemptCount int, lastError string) error {
	args := m.Called(ctx, workspaceID, id, attemptCount, lastError)
	return args.Error(0)
}

func (m *MockDeliveryRepo) Replay(ctx context.Context, workspaceID, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, workspaceID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryRepo) ReplayBulk(ctx context.Context, filter repository.DeliveryListFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockAttemptRepo is a mock implementation of AttemptRepositoryInterface
type MockAttemptRepo struct {
	mock.Mock
}

func (m *MockAttemptRepo) Insert(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepo) ListByDelivery(ctx context.Context, workspaceID, deliveryID uuid.UUID) ([]domain.DeliveryAttempt, error) {
	args := m.Called(ctx, workspaceID, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeliveryAttempt), args.Error(1)
}

func (m *MockAttemptRepo) CountByDelivery(ctx context.Context, workspaceID, deliveryID uuid.UUID) (int, error) {
	args := m.Called(ctx, workspaceID, deliveryID)
	return args.Int(0), args.Error(1)
}

// MockDestinationRepo is a mock implementation of DestinationRepositoryInterface
type MockDestinationRepo struct {
	mock.Mock
}

func (m *MockDestinationRepo) Create(ctx context.Context, dest *domain.Destination) error {
	args := m.Called(ctx, dest)
	return args.Error(0)
}

func (m *MockDestinationRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Destination, error) {
	args := m.Called(ctx, workspaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Destination), args.Error(1)
}

func (m *MockDestinationRepo) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Destination, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Destination), args.Error(1)
}

func (m *MockDestinationRepo) ListEnabledByEvent(ctx context.Context, workspaceID uuid.UUID, eventType string) ([]domain.Destination, error) {
	args := m.Called(ctx, workspaceID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Destination), args.Error(1)
}

func (m *MockDestinationRepo) Update(ctx context.Context, dest *domain.Destination) error {
	args := m.Called(ctx, dest)
	return args.Error(0)
}

func (m *MockDestinationRepo) UpdateSecret(ctx context.Context, workspaceID, id uuid.UUID, secretHash, secretPrefix string) error {
	args := m.Called(ctx, workspaceID, id, secretHash, secretPrefix)
	return args.Error(0)
}

func (m *MockDestinationRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	args := m.Called(ctx, workspaceID, id)
	return args.Error(0)
}

type allowAllGuard struct{}

func (allowAllGuard) AssertPublicURL(ctx context.Context, rawURL string) error { return nil }

func newTestRunner(deliveries *MockDeliveryRepo, attempts *MockAttemptRepo, destinations *MockDestinationRepo) *Runner {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Deliveries:   deliveries,
		Attempts:     attempts,
		Destinations: destinations,
		Sender:       dispatch.NewSender(5 * time.Second),
		Guard:        allowAllGuard{},
		Backoff:      dispatch.BackoffPolicy{Base: time.Second, Max: time.Minute},
		MaxAttempts:  3,
		Logger:       logger,
	})
	return NewRunner(deliveries, dispatcher, time.Minute, logger)
}

func TestRunner_Run(t *testing.T) {
	workspaceID := uuid.New()
	ctx := context.Background()

	t.Run("empty queue is a no-op", func(t *testing.T) {
		deliveries := new(MockDeliveryRepo)
		runner := newTestRunner(deliveries, new(MockAttemptRepo), new(MockDestinationRepo))

		deliveries.On("ClaimDue", mock.Anything, 50, time.Minute).Return([]domain.Delivery{}, nil)

		stats, err := runner.Run(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
	})

	t.Run("claim error is surfaced", func(t *testing.T) {
		deliveries := new(MockDeliveryRepo)
		runner := newTestRunner(deliveries, new(MockAttemptRepo), new(MockDestinationRepo))

		deliveries.On("ClaimDue", mock.Anything, 50, time.Minute).Return(nil, errors.New("connection refused"))

		_, err := runner.Run(ctx, 50)
		assert.Error(t, err)
	})

	t.Run("dispatches every claimed delivery", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		deliveries := new(MockDeliveryRepo)
		attempts := new(MockAttemptRepo)
		destinations := new(MockDestinationRepo)
		runner := newTestRunner(deliveries, attempts, destinations)

		dest := &domain.Destination{
			ID:                uuid.New(),
			WorkspaceID:       workspaceID,
			Name:              "crm-sync",
			URL:               server.URL,
			Method:            domain.MethodPost,
			Enabled:           true,
			Events:            []string{domain.EventLeadCreated},
			SigningSecretHash: signing.HashKey("whsec_test"),
		}
		claimed := []domain.Delivery{
			{ID: uuid.New(), WorkspaceID: workspaceID, DestinationID: dest.ID, EventType: domain.EventLeadCreated, Status: domain.DeliveryPending, Payload: []byte(`{}`)},
			{ID: uuid.New(), WorkspaceID: workspaceID, DestinationID: dest.ID, EventType: domain.EventLeadCreated, Status: domain.DeliveryFailed, AttemptCount: 1, Payload: []byte(`{}`)},
		}

		deliveries.On("ClaimDue", mock.Anything, 50, time.Minute).Return(claimed, nil)
		destinations.On("GetByID", mock.Anything, workspaceID, dest.ID).Return(dest, nil)
		attempts.On("Insert", mock.Anything, mock.Anything).Return(nil)
		deliveries.On("MarkSuccess", mock.Anything, workspaceID, claimed[0].ID, 1).Return(nil)
		deliveries.On("MarkSuccess", mock.Anything, workspaceID, claimed[1].ID, 2).Return(nil)

		stats, err := runner.Run(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Processed)
		assert.Equal(t, 2, stats.Succeeded)
		assert.Equal(t, int32(2), hits.Load())

		deliveries.AssertExpectations(t)
	})

	t.Run("one broken row does not stop the batch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		deliveries := new(MockDeliveryRepo)
		attempts := new(MockAttemptRepo)
		destinations := new(MockDestinationRepo)
		runner := newTestRunner(deliveries, attempts, destinations)

		dest := &domain.Destination{
			ID:                uuid.New(),
			WorkspaceID:       workspaceID,
			Name:              "crm-sync",
			URL:               server.URL,
			Method:            domain.MethodPost,
			Enabled:           true,
			Events:            []string{domain.EventLeadCreated},
			SigningSecretHash: signing.HashKey("whsec_test"),
		}
		broken := domain.Delivery{ID: uuid.New(), WorkspaceID: workspaceID, DestinationID: uuid.New(), EventType: domain.EventLeadCreated, Status: domain.DeliveryPending}
		healthy := domain.Delivery{ID: uuid.New(), WorkspaceID: workspaceID, DestinationID: dest.ID, EventType: domain.EventLeadCreated, Status: domain.DeliveryPending, Payload: []byte(`{}`)}

		deliveries.On("ClaimDue", mock.Anything, 50, time.Minute).Return([]domain.Delivery{broken, healthy}, nil)
		destinations.On("GetByID", mock.Anything, workspaceID, broken.DestinationID).Return(nil, errors.New("connection refused"))
		destinations.On("GetByID", mock.Anything, workspaceID, dest.ID).Return(dest, nil)
		attempts.On("Insert", mock.Anything, mock.Anything).Return(nil)
		deliveries.On("MarkSuccess", mock.Anything, workspaceID, healthy.ID, 1).Return(nil)

		stats, err := runner.Run(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Processed)
		assert.Equal(t, 1, stats.Succeeded)
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		deliveries := new(MockDeliveryRepo)
		runner := newTestRunner(deliveries, new(MockAttemptRepo), new(MockDestinationRepo))

		claimed := []domain.Delivery{
			{ID: uuid.New(), WorkspaceID: workspaceID, DestinationID: uuid.New(), Status: domain.DeliveryPending},
		}
		deliveries.On("ClaimDue", mock.Anything, 50, time.Minute).Return(claimed, nil)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := runner.Run(canceled, 50)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
