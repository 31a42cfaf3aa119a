package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Allowed HTTP methods for outbound delivery.
const (
	MethodPost  = "post"
	MethodPut   = "put"
	MethodPatch = "patch"
)

var validMethods = map[string]bool{
	MethodPost:  true,
	MethodPut:   true,
	MethodPatch: true,
}

// Event types a destination can subscribe to.
const (
	EventLeadCreated = "lead.created"
	EventLeadUpdated = "lead.updated"
	EventTestSend    = "test.send"
)

// Destination is a configured outbound HTTP webhook target. The signing
// secret is shown to the caller exactly once at creation or rotation; only
// SigningSecretHash and SigningSecretPrefix are ever stored.
type Destination struct {
	ID                  uuid.UUID         `json:"id"`
	WorkspaceID         uuid.UUID         `json:"workspace_id"`
	Name                string            `json:"name"`
	URL                 string            `json:"url"`
	Method              string            `json:"method"`
	Headers             map[string]string `json:"headers,omitempty"`
	Enabled             bool              `json:"enabled"`
	Events              []string          `json:"events"`
	SigningSecretHash   string            `json:"-"`
	SigningSecretPrefix string            `json:"signing_secret_prefix"`
	// MaxAttempts overrides the workspace default when > 0.
	MaxAttempts int       `json:"max_attempts,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *Destination) Validate() error {
	if d.WorkspaceID == uuid.Nil {
		return errors.New("workspace_id cannot be empty")
	}
	if d.Name == "" {
		return errors.New("name cannot be empty")
	}
	if d.URL == "" {
		return errors.New("url cannot be empty")
	}
	if !validMethods[strings.ToLower(d.Method)] {
		return errors.New("method must be one of: post, put, patch")
	}
	if len(d.Events) == 0 {
		return errors.New("events cannot be empty")
	}
	for _, e := range d.Events {
		if e == "" {
			return errors.New("event type cannot be empty")
		}
	}
	if d.MaxAttempts < 0 {
		return errors.New("max_attempts cannot be negative")
	}
	return nil
}

// SubscribedTo reports whether the destination listens for the event type.
func (d *Destination) SubscribedTo(eventType string) bool {
	for _, e := range d.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
