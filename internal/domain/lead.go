package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Lead is a captured inbound contact. Only the fields the delivery pipeline
// reads are modeled; the full CRM surface lives elsewhere.
type Lead struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Email       string    `json:"email,omitempty"`
	Name        string    `json:"name,omitempty"`
	Source      string    `json:"source,omitempty"`
	// IngestionID deduplicates repeated submissions of the same event.
	IngestionID *string   `json:"ingestion_id,omitempty"`
	Fields      []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l *Lead) Validate() error {
	if l.WorkspaceID == uuid.Nil {
		return errors.New("workspace_id cannot be empty")
	}
	if l.Email == "" && l.Name == "" {
		return errors.New("lead must carry at least an email or a name")
	}
	return nil
}
