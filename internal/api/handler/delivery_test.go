package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/repository"
)

func newDeliveryApp(workspaceID uuid.UUID, deliveries *MockDeliveryRepo, attempts *MockAttemptRepo, dispatcher *dispatch.Dispatcher) *fiber.App {
	app := newTestApp(workspaceID)
	h := NewDeliveryHandler(deliveries, attempts, dispatcher, 100*time.Millisecond, testLogger())

	app.Get("/v1/deliveries", h.List)
	app.Get("/v1/deliveries/:id", h.Get)
	app.Post("/v1/deliveries/:id/replay", h.Replay)
	app.Post("/v1/deliveries/replay-bulk", h.ReplayBulk)
	app.Post("/v1/deliveries/send-all-leads", h.SendAllLeads)

	return app
}

func newDeliveryDispatcher(deliveries *MockDeliveryRepo, destinations *MockDestinationRepo, leads *MockLeadRepo) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(dispatch.Deps{
		Deliveries:   deliveries,
		Attempts:     &MockAttemptRepo{},
		Destinations: destinations,
		Leads:        leads,
		Sender:       dispatch.NewSender(time.Second),
		Guard:        allowAllGuard{},
		Backoff:      dispatch.BackoffPolicy{Base: time.Second, Max: time.Minute},
		MaxAttempts:  3,
		Logger:       testLogger(),
	})
}

func TestDeliveryHandler_List(t *testing.T) {
	workspaceID := uuid.New()

	t.Run("applies filters from query", func(t *testing.T) {
		destID := uuid.New()
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("List", mock.Anything, mock.MatchedBy(func(f repository.DeliveryListFilter) bool {
			return f.WorkspaceID == workspaceID &&
				f.Status != nil && *f.Status == domain.DeliveryFailed &&
				f.DestinationID != nil && *f.DestinationID == destID &&
				f.Limit == 10 && f.Offset == 20
		})).Return([]domain.Delivery{}, nil)

		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, nil)

		url := "/v1/deliveries?status=failed&destination_id=" + destID.String() + "&limit=10&offset=20"
		resp, err := app.Test(httptest.NewRequest("GET", url, nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		mockDeliveries.AssertExpectations(t)
	})

	t.Run("invalid status filter returns 422", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, nil)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries?status=bogus", nil))
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
		mockDeliveries.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("oversized limit falls back to default", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("List", mock.Anything, mock.MatchedBy(func(f repository.DeliveryListFilter) bool {
			return f.Limit == defaultPageSize
		})).Return([]domain.Delivery{}, nil)

		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, nil)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries?limit=5000", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		mockDeliveries.AssertExpectations(t)
	})
}

func TestDeliveryHandler_Get(t *testing.T) {
	workspaceID := uuid.New()
	deliveryID := uuid.New()

	t.Run("returns delivery with attempts", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("GetByID", mock.Anything, workspaceID, deliveryID).Return(&domain.Delivery{
			ID:          deliveryID,
			WorkspaceID: workspaceID,
			Status:      domain.DeliveryFailed,
		}, nil)

		mockAttempts := &MockAttemptRepo{}
		mockAttempts.On("ListByDelivery", mock.Anything, workspaceID, deliveryID).Return([]domain.DeliveryAttempt{
			{DeliveryID: deliveryID, AttemptNumber: 1, Error: "HTTP 500"},
		}, nil)

		app := newDeliveryApp(workspaceID, mockDeliveries, mockAttempts, nil)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries/"+deliveryID.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var got DeliveryDetailResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, deliveryID, got.Delivery.ID)
		require.Len(t, got.Attempts, 1)
		assert.Equal(t, "HTTP 500", got.Attempts[0].Error)
	})

	t.Run("unknown delivery returns 404", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("GetByID", mock.Anything, workspaceID, deliveryID).Return(nil, domain.ErrDeliveryNotFound)

		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, nil)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries/"+deliveryID.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})
}

func TestDeliveryHandler_Replay(t *testing.T) {
	workspaceID := uuid.New()
	deliveryID := uuid.New()

	t.Run("requeues a replayable delivery", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("Replay", mock.Anything, workspaceID, deliveryID).Return(true, nil)

		dispatcher := newDeliveryDispatcher(mockDeliveries, &MockDestinationRepo{}, &MockLeadRepo{})
		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, dispatcher)

		resp, err := app.Test(httptest.NewRequest("POST", "/v1/deliveries/"+deliveryID.String()+"/replay", nil))
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		mockDeliveries.AssertExpectations(t)
	})

	t.Run("missing delivery returns 404", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("Replay", mock.Anything, workspaceID, deliveryID).Return(false, nil)

		dispatcher := newDeliveryDispatcher(mockDeliveries, &MockDestinationRepo{}, &MockLeadRepo{})
		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, dispatcher)

		resp, err := app.Test(httptest.NewRequest("POST", "/v1/deliveries/"+deliveryID.String()+"/replay", nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})
}

func TestDeliveryHandler_ReplayBulk(t *testing.T) {
	workspaceID := uuid.New()

	mockDeliveries := &MockDeliveryRepo{}
	mockDeliveries.On("ReplayBulk", mock.Anything, mock.MatchedBy(func(f repository.DeliveryListFilter) bool {
		return f.WorkspaceID == workspaceID && f.Status != nil && *f.Status == domain.DeliveryDeadLetter
	})).Return(int64(7), nil)

	dispatcher := newDeliveryDispatcher(mockDeliveries, &MockDestinationRepo{}, &MockLeadRepo{})
	app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, dispatcher)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/deliveries/replay-bulk?status=dead_letter", nil))
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	var got map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 7, got["replayed"])
	mockDeliveries.AssertExpectations(t)
}

func TestDeliveryHandler_SendAllLeads(t *testing.T) {
	workspaceID := uuid.New()
	destID := uuid.New()

	t.Run("queues one delivery per lead", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		mockDeliveries.On("Create", mock.Anything, mock.Anything).Return(nil).Times(2)

		mockDestinations := &MockDestinationRepo{}
		mockDestinations.On("GetByID", mock.Anything, workspaceID, destID).Return(&domain.Destination{
			ID:          destID,
			WorkspaceID: workspaceID,
			Name:        "CRM sync",
			URL:         "https://crm.example.com/hooks",
			Method:      "post",
			Events:      []string{"lead.created"},
			Enabled:     true,
		}, nil)

		mockLeads := &MockLeadRepo{}
		mockLeads.On("List", mock.Anything, workspaceID).Return([]domain.Lead{
			{ID: uuid.New(), WorkspaceID: workspaceID, Email: "a@example.com"},
			{ID: uuid.New(), WorkspaceID: workspaceID, Email: "b@example.com"},
		}, nil)

		dispatcher := newDeliveryDispatcher(mockDeliveries, mockDestinations, mockLeads)
		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, dispatcher)

		body := `{"destination_id":"` + destID.String() + `"}`
		req := httptest.NewRequest("POST", "/v1/deliveries/send-all-leads", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)

		var got map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, 2, got["queued"])

		mockDeliveries.AssertExpectations(t)
		mockLeads.AssertExpectations(t)
	})

	t.Run("invalid destination id returns 422", func(t *testing.T) {
		mockDeliveries := &MockDeliveryRepo{}
		app := newDeliveryApp(workspaceID, mockDeliveries, &MockAttemptRepo{}, nil)

		req := httptest.NewRequest("POST", "/v1/deliveries/send-all-leads", strings.NewReader(`{"destination_id":"nope"}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
	})
}
