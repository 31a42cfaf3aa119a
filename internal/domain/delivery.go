package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the lifecycle state of an outbound delivery.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliverySuccess    DeliveryStatus = "success"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliveryDeadLetter DeliveryStatus = "dead_letter"
)

// validTransitions encodes the delivery state machine. success and
// dead_letter are terminal; failed may retry, succeed or dead-letter.
var validTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending: {DeliverySuccess, DeliveryFailed},
	DeliveryFailed:  {DeliveryFailed, DeliverySuccess, DeliveryDeadLetter},
}

// CanTransition reports whether moving from one status to another is legal.
func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySuccess || s == DeliveryDeadLetter
}

// Retryable reports whether the scheduler may pick the delivery up again.
func (s DeliveryStatus) Retryable() bool {
	return s == DeliveryPending || s == DeliveryFailed
}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliverySuccess, DeliveryFailed, DeliveryDeadLetter:
		return true
	}
	return false
}

// Delivery is one logical outbound event bound to a destination. Rows are
// never deleted by normal flow; they are the audit trail of the pipeline.
type Delivery struct {
	ID            uuid.UUID      `json:"id"`
	WorkspaceID   uuid.UUID      `json:"workspace_id"`
	DestinationID uuid.UUID      `json:"destination_id"`
	LeadID        *uuid.UUID     `json:"lead_id,omitempty"`
	IngestionID   *string        `json:"ingestion_id,omitempty"`
	EventType     string         `json:"event_type"`
	Payload       []byte         `json:"-"`
	Status        DeliveryStatus `json:"status"`
	AttemptCount  int            `json:"attempt_count"`
	LastError     string         `json:"last_error,omitempty"`
	NextAttemptAt *time.Time     `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
