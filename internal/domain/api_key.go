package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates workspace-scoped API access. Only the SHA-256 hash
// and a display prefix are stored; the plaintext key is returned once at
// creation (see the signing package for generation).
type APIKey struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	Name        string     `json:"name"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"key_prefix"`
	IsActive    bool       `json:"is_active"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a *APIKey) Validate() error {
	if a.WorkspaceID == uuid.Nil {
		return errors.New("workspace_id cannot be empty")
	}
	if a.Name == "" {
		return errors.New("name cannot be empty")
	}
	if a.KeyHash == "" {
		return errors.New("key_hash cannot be empty")
	}
	if a.KeyPrefix == "" {
		return errors.New("key_prefix cannot be empty")
	}
	return nil
}
