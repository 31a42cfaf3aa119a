package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// LeadResponse represents the response for a successful lead ingestion
type LeadResponse struct {
	ID        string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email     string `json:"email" example:"ada@example.com"`
	Name      string `json:"name" example:"Ada Lovelace"`
	Source    string `json:"source" example:"landing-page"`
	Duplicate bool   `json:"duplicate" example:"false"`
	Queued    int    `json:"queued" example:"2"`
}

// DestinationResponse represents a webhook destination
type DestinationResponse struct {
	ID                  string   `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name                string   `json:"name" example:"crm-sync"`
	URL                 string   `json:"url" example:"https://hooks.example.com/leads"`
	Method              string   `json:"method" example:"post"`
	Events              []string `json:"events" example:"lead.created"`
	Enabled             bool     `json:"enabled" example:"true"`
	SigningSecretPrefix string   `json:"signing_secret_prefix" example:"whsec_9f82ab"`
}

// DestinationCreatedResponse includes the one-time plaintext signing secret
type DestinationCreatedResponse struct {
	DestinationResponse
	SigningSecret string `json:"signing_secret" example:"whsec_9f82ab11c0..."`
}

// DeliveryResponse represents one delivery row
type DeliveryResponse struct {
	ID            string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	DestinationID string `json:"destination_id" example:"650e8400-e29b-41d4-a716-446655440000"`
	EventType     string `json:"event_type" example:"lead.created"`
	Status        string `json:"status" example:"pending"`
	AttemptCount  int    `json:"attempt_count" example:"1"`
	LastError     string `json:"last_error,omitempty" example:"HTTP 502"`
	NextAttemptAt string `json:"next_attempt_at,omitempty" example:"2024-01-01T00:00:10Z"`
}

// ReplayResponse reports how many deliveries were re-queued
type ReplayResponse struct {
	Replayed int64 `json:"replayed" example:"12"`
}

// CronStatsResponse summarizes one scheduler run
type CronStatsResponse struct {
	Processed  int `json:"processed" example:"10"`
	Succeeded  int `json:"succeeded" example:"8"`
	Failed     int `json:"failed" example:"1"`
	DeadLetter int `json:"dead_letter" example:"1"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Leadops API",
		Version:     "v1.0.0",
		Description: "Lead operations platform: lead capture with signed webhook delivery, retries and replay, with multi-workspace support",
		Host:        "localhost:8080",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/leads - Ingest a lead
		endpoint.New(
			endpoint.POST,
			"/leads",
			endpoint.WithTags("Leads"),
			endpoint.WithSummary("Ingest a lead"),
			endpoint.WithDescription("Stores a lead and queues a signed webhook delivery for every destination subscribed to lead.created. Send an Idempotency-Key header to deduplicate retried submissions."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LeadResponse{}, "201", "Lead ingested and deliveries queued"),
				response.New(LeadResponse{Duplicate: true}, "200", "Duplicate Idempotency-Key, stored lead returned"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "lead must carry at least an email or a name"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/leads/:id
		endpoint.New(
			endpoint.GET,
			"/leads/{id}",
			endpoint.WithTags("Leads"),
			endpoint.WithSummary("Get a lead"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LeadResponse{}, "200", "Lead"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "LEAD_NOT_FOUND", Message: "Lead not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/destinations - Create destination
		endpoint.New(
			endpoint.POST,
			"/destinations",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("Create a webhook destination"),
			endpoint.WithDescription("Registers an outbound webhook target. The URL is rejected if it resolves to a private or internal address. The signing secret is returned exactly once."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DestinationCreatedResponse{}, "201", "Destination created"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Invalid request"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "PRIVATE_DESTINATION_URL", Message: "URL resolves to a private address"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/destinations - List destinations
		endpoint.New(
			endpoint.GET,
			"/destinations",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("List webhook destinations"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]DestinationResponse{}, "200", "Destinations for the workspace"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/destinations/:id
		endpoint.New(
			endpoint.GET,
			"/destinations/{id}",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("Get a webhook destination"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DestinationResponse{}, "200", "Destination"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DESTINATION_NOT_FOUND", Message: "Destination not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// PUT /v1/destinations/:id
		endpoint.New(
			endpoint.PUT,
			"/destinations/{id}",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("Update a webhook destination"),
			endpoint.WithDescription("Partial update; the URL is re-validated against private address ranges on every change."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DestinationResponse{}, "200", "Updated destination"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DESTINATION_NOT_FOUND", Message: "Destination not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "PRIVATE_DESTINATION_URL", Message: "URL resolves to a private address"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// DELETE /v1/destinations/:id
		endpoint.New(
			endpoint.DELETE,
			"/destinations/{id}",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("Delete a webhook destination"),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "204", "Destination deleted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DESTINATION_NOT_FOUND", Message: "Destination not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/destinations/:id/rotate-secret
		endpoint.New(
			endpoint.POST,
			"/destinations/{id}/rotate-secret",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("Rotate the signing secret"),
			endpoint.WithDescription("Replaces the destination's signing secret. The new plaintext secret is returned exactly once; previous signatures stop verifying immediately."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DestinationCreatedResponse{}, "200", "Secret rotated"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DESTINATION_NOT_FOUND", Message: "Destination not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/destinations/:id/test
		endpoint.New(
			endpoint.POST,
			"/destinations/{id}/test",
			endpoint.WithTags("Destinations"),
			endpoint.WithSummary("Send a test delivery"),
			endpoint.WithDescription("Synchronously sends a signed test.send event and returns the destination's response inline. The attempt is recorded as attempt 0."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DeliveryResponse{}, "200", "Test delivery result"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DESTINATION_DISABLED", Message: "Destination is disabled"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "DESTINATION_NOT_FOUND", Message: "Destination not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/deliveries
		endpoint.New(
			endpoint.GET,
			"/deliveries",
			endpoint.WithTags("Deliveries"),
			endpoint.WithSummary("List deliveries"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("status", parameter.Query, parameter.WithDescription("pending | success | failed | dead_letter")),
				parameter.StrParam("destination_id", parameter.Query, parameter.WithDescription("Filter by destination")),
				parameter.StrParam("from", parameter.Query, parameter.WithDescription("RFC3339 lower bound on created_at")),
				parameter.StrParam("to", parameter.Query, parameter.WithDescription("RFC3339 upper bound on created_at")),
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Page size, max 200")),
				parameter.IntParam("offset", parameter.Query, parameter.WithDescription("Page offset")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]DeliveryResponse{}, "200", "Deliveries for the workspace"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// GET /v1/deliveries/:id
		endpoint.New(
			endpoint.GET,
			"/deliveries/{id}",
			endpoint.WithTags("Deliveries"),
			endpoint.WithSummary("Get a delivery with its attempt history"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DeliveryResponse{}, "200", "Delivery with attempts"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DELIVERY_NOT_FOUND", Message: "Delivery not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/deliveries/:id/replay
		endpoint.New(
			endpoint.POST,
			"/deliveries/{id}/replay",
			endpoint.WithTags("Deliveries"),
			endpoint.WithSummary("Replay a delivery"),
			endpoint.WithDescription("Re-queues the delivery for immediate dispatch. Attempt history is preserved."),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Resource UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReplayResponse{}, "202", "Delivery re-queued"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DELIVERY_NOT_FOUND", Message: "Delivery not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/deliveries/replay-bulk
		endpoint.New(
			endpoint.POST,
			"/deliveries/replay-bulk",
			endpoint.WithTags("Deliveries"),
			endpoint.WithSummary("Replay deliveries in bulk"),
			endpoint.WithDescription("Re-queues every delivery matching the same filters as the list endpoint."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("status", parameter.Query, parameter.WithDescription("pending | success | failed | dead_letter")),
				parameter.StrParam("destination_id", parameter.Query, parameter.WithDescription("Filter by destination")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReplayResponse{}, "202", "Deliveries re-queued"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /v1/deliveries/send-all-leads
		endpoint.New(
			endpoint.POST,
			"/deliveries/send-all-leads",
			endpoint.WithTags("Deliveries"),
			endpoint.WithSummary("Backfill every lead to one destination"),
			endpoint.WithDescription("Queues a lead.created delivery for each stored lead, staggered to avoid flooding the target."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReplayResponse{}, "202", "Backfill queued"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "DESTINATION_DISABLED", Message: "Destination is disabled"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"ApiKeyAuth": {}}}),
		),

		// POST /internal/cron/deliveries
		endpoint.New(
			endpoint.POST,
			"/internal/cron/deliveries",
			endpoint.WithTags("Cron"),
			endpoint.WithSummary("Drain due deliveries"),
			endpoint.WithDescription("Claims up to limit due deliveries and dispatches them. Guarded by the CRON_SECRET bearer token, not a workspace API key."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Batch size, max 1000")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CronStatsResponse{}, "200", "Run statistics"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid cron secret"}, "401", "Unauthorized"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
