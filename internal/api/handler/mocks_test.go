package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/leadops-io/leadops/internal/api/middleware"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/ratelimit"
	"github.com/leadops-io/leadops/internal/repository"
)

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

// MockLeadRepo is a mock implementation of LeadRepositoryInterface
type MockLeadRepo struct {
	mock.Mock
}

func (m *MockLeadRepo) Create(ctx context.Context, lead *domain.Lead) (bool, error) {
	args := m.Called(ctx, lead)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeadRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.Lead, error) {
	args := m.Called(ctx, workspaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *MockLeadRepo) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Lead, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Lead), args.Error(1)
}

// stubSourceLimiter returns a canned per-source ingestion result.
type stubSourceLimiter struct {
	result ratelimit.Result
	err    error
}

func (s *stubSourceLimiter) Check(_ context.Context, _ uuid.UUID, _ string, _ int) (ratelimit.Result, error) {
	return s.result, s.err
}

// allowAllGuard accepts every URL.
type allowAllGuard struct{}

func (allowAllGuard) AssertPublicURL(context.Context, string) error { return nil }

// denyAllGuard rejects every URL with the given error.
type denyAllGuard struct{ err error }

func (g denyAllGuard) AssertPublicURL(context.Context, string) error { return g.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestApp builds a fiber app with the AppError conversion and a fixed
// workspace in context, matching what the router middleware provides.
func newTestApp(workspaceID uuid.UUID) *fiber.App {
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil {
			if appErr, ok := err.(*domain.AppError); ok {
				return c.Status(appErr.StatusCode).JSON(appErr)
			}
			return c.Status(500).SendString(err.Error())
		}
		return nil
	})

	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalWorkspaceID, workspaceID)
		return c.Next()
	})

	return app
}
