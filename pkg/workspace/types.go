package workspace

import "time"

// Workspace is a private tenant owned by exactly one principal. It is
// created once at individual-license activation and persists for the owner's
// active lifetime; there is no deletion path while the owner is active.
type Workspace struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateWorkspaceRequest represents a request to activate a private workspace
type CreateWorkspaceRequest struct {
	DisplayName string `json:"display_name"`
}
