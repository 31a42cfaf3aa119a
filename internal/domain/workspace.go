package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Workspace is the tenant isolation boundary. Every destination, delivery
// and attempt row carries a workspace_id and every query filters by it.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Workspace) Validate() error {
	if w.Name == "" {
		return errors.New("name cannot be empty")
	}
	if w.Slug == "" {
		return errors.New("slug cannot be empty")
	}
	return nil
}
