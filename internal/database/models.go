// internal/database/models.go
package database

import "time"

// Workspace is one playground project.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Template  string    `json:"template,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is one persisted revision of a workspace tree. Data is stored as
// handed in; callers own the encoding.
type Snapshot struct {
	WorkspaceID string    `json:"workspace_id"`
	Revision    int64     `json:"revision"`
	Hash        string    `json:"hash"`
	Size        int       `json:"size"` // uncompressed document size
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
