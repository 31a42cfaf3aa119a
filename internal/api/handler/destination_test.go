package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
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
)

func newDestinationApp(workspaceID uuid.UUID, repo *MockDestinationRepo, dispatcher *dispatch.Dispatcher, guard dispatch.URLGuard) *fiber.App {
	app := newTestApp(workspaceID)
	h := NewDestinationHandler(repo, dispatcher, guard, testLogger())

	app.Post("/v1/destinations", h.Create)
	app.Get("/v1/destinations", h.List)
	app.Get("/v1/destinations/:id", h.Get)
	app.Put("/v1/destinations/:id", h.Update)
	app.Delete("/v1/destinations/:id", h.Delete)
	app.Post("/v1/destinations/:id/rotate-secret", h.RotateSecret)
	app.Post("/v1/destinations/:id/test", h.Test)

	return app
}

func TestDestinationHandler_Create(t *testing.T) {
	workspaceID := uuid.New()

	t.Run("creates destination and surfaces secret once", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Destination) bool {
			return d.WorkspaceID == workspaceID &&
				d.Name == "CRM sync" &&
				d.Method == "post" &&
				d.Enabled &&
				d.SigningSecretHash != ""
		})).Return(nil)

		app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

		body := `{"name":"CRM sync","url":"https://crm.example.com/hooks","events":["lead.created"]}`
		req := httptest.NewRequest("POST", "/v1/destinations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)

		var got DestinationResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.True(t, strings.HasPrefix(got.SigningSecret, "whsec_"))
		assert.NotEmpty(t, got.SigningSecretPrefix)

		mockRepo.AssertExpectations(t)
	})

	t.Run("rejects destination without events", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

		body := `{"name":"CRM sync","url":"https://crm.example.com/hooks"}`
		req := httptest.NewRequest("POST", "/v1/destinations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects private URL before persisting", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		app := newDestinationApp(workspaceID, mockRepo, nil, denyAllGuard{err: domain.ErrPrivateDestinationURL})

		body := `{"name":"Internal","url":"http://10.0.0.5/hook","events":["lead.created"]}`
		req := httptest.NewRequest("POST", "/v1/destinations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)

		respBody, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(respBody), "PRIVATE_DESTINATION_URL")
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestDestinationHandler_Update(t *testing.T) {
	workspaceID := uuid.New()
	destID := uuid.New()

	existing := func() *domain.Destination {
		return &domain.Destination{
			ID:          destID,
			WorkspaceID: workspaceID,
			Name:        "CRM sync",
			URL:         "https://crm.example.com/hooks",
			Method:      "post",
			Events:      []string{"lead.created"},
			Enabled:     true,
		}
	}

	t.Run("merges partial update", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		mockRepo.On("GetByID", mock.Anything, workspaceID, destID).Return(existing(), nil)
		mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Destination) bool {
			return d.Name == "CRM sync v2" && d.URL == "https://crm.example.com/hooks" && !d.Enabled
		})).Return(nil)

		app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

		body := `{"name":"CRM sync v2","enabled":false}`
		req := httptest.NewRequest("PUT", "/v1/destinations/"+destID.String(), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		mockRepo.AssertExpectations(t)
	})

	t.Run("re-guards unchanged URL", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		mockRepo.On("GetByID", mock.Anything, workspaceID, destID).Return(existing(), nil)

		app := newDestinationApp(workspaceID, mockRepo, nil, denyAllGuard{err: domain.ErrPrivateDestinationURL})

		body := `{"name":"renamed"}`
		req := httptest.NewRequest("PUT", "/v1/destinations/"+destID.String(), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("unknown destination returns 404", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		mockRepo.On("GetByID", mock.Anything, workspaceID, destID).Return(nil, domain.ErrDestinationNotFound)

		app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

		req := httptest.NewRequest("PUT", "/v1/destinations/"+destID.String(), strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		mockRepo := &MockDestinationRepo{}
		app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

		req := httptest.NewRequest("PUT", "/v1/destinations/not-a-uuid", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})
}

func TestDestinationHandler_RotateSecret(t *testing.T) {
	workspaceID := uuid.New()
	destID := uuid.New()

	mockRepo := &MockDestinationRepo{}
	mockRepo.On("GetByID", mock.Anything, workspaceID, destID).Return(&domain.Destination{
		ID:          destID,
		WorkspaceID: workspaceID,
		Name:        "CRM sync",
		URL:         "https://crm.example.com/hooks",
		Method:      "post",
		Events:      []string{"lead.created"},
		Enabled:     true,
	}, nil)
	mockRepo.On("UpdateSecret", mock.Anything, workspaceID, destID,
		mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)

	app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

	req := httptest.NewRequest("POST", "/v1/destinations/"+destID.String()+"/rotate-secret", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var got DestinationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, strings.HasPrefix(got.SigningSecret, "whsec_"))

	mockRepo.AssertExpectations(t)
}

func TestDestinationHandler_Test(t *testing.T) {
	workspaceID := uuid.New()
	destID := uuid.New()

	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mockDest := &MockDestinationRepo{}
	mockDest.On("GetByID", mock.Anything, workspaceID, destID).Return(&domain.Destination{
		ID:                destID,
		WorkspaceID:       workspaceID,
		Name:              "CRM sync",
		URL:               server.URL,
		Method:            "post",
		Events:            []string{"lead.created"},
		Enabled:           true,
		SigningSecretHash: "secret-hash",
	}, nil)

	mockDeliveries := &MockDeliveryRepo{}
	mockDeliveries.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockDeliveries.On("MarkSuccess", mock.Anything, workspaceID, mock.Anything, 1).Return(nil)

	mockAttempts := &MockAttemptRepo{}
	mockAttempts.On("Insert", mock.Anything, mock.Anything).Return(nil)

	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Deliveries:   mockDeliveries,
		Attempts:     mockAttempts,
		Destinations: mockDest,
		Leads:        &MockLeadRepo{},
		Sender:       dispatch.NewSender(5 * time.Second),
		Guard:        allowAllGuard{},
		Backoff:      dispatch.BackoffPolicy{Base: time.Second, Max: time.Minute},
		MaxAttempts:  3,
		Logger:       testLogger(),
	})

	app := newDestinationApp(workspaceID, mockDest, dispatcher, allowAllGuard{})

	body := `{"payload":{"hello":"world"}}`
	req := httptest.NewRequest("POST", "/v1/destinations/"+destID.String()+"/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var got TestSendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success)
	assert.NotEmpty(t, got.DeliveryID)

	require.True(t, bytes.Contains(received, []byte(`"hello":"world"`)))
	mockDest.AssertExpectations(t)
	mockDeliveries.AssertExpectations(t)
	mockAttempts.AssertExpectations(t)
}

func TestDestinationHandler_Delete(t *testing.T) {
	workspaceID := uuid.New()
	destID := uuid.New()

	mockRepo := &MockDestinationRepo{}
	mockRepo.On("Delete", mock.Anything, workspaceID, destID).Return(nil)

	app := newDestinationApp(workspaceID, mockRepo, nil, allowAllGuard{})

	req := httptest.NewRequest("DELETE", "/v1/destinations/"+destID.String(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	mockRepo.AssertExpectations(t)
}
