package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAttempt is the immutable record of one HTTP call made while
// dispatching a delivery. Attempt 0 is reserved for manual test sends;
// scheduled attempts number from 1. Rows are append-only.
type DeliveryAttempt struct {
	ID             uuid.UUID `json:"id"`
	DeliveryID     uuid.UUID `json:"delivery_id"`
	WorkspaceID    uuid.UUID `json:"workspace_id"`
	AttemptNumber  int       `json:"attempt_number"`
	RequestPayload []byte    `json:"request_payload,omitempty"`
	ResponseStatus *int      `json:"response_status,omitempty"`
	ResponseBody   string    `json:"response_body,omitempty"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Succeeded reports whether the attempt got a 2xx response.
func (a *DeliveryAttempt) Succeeded() bool {
	return a.Error == "" && a.ResponseStatus != nil &&
		*a.ResponseStatus >= 200 && *a.ResponseStatus < 300
}
