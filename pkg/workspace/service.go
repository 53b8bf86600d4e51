package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// ErrAlreadyExists is returned when a principal already owns a workspace
var ErrAlreadyExists = errors.New("workspace already exists for principal")

// Service defines the interface for the workspace registry
type Service interface {
	Create(ctx context.Context, ownerID string, req *CreateWorkspaceRequest) (*Workspace, error)
	GetByID(ctx context.Context, id int64) (*Workspace, error)
	GetByOwner(ctx context.Context, ownerID string) (*Workspace, error)

	// WorkspaceIDForOwner satisfies tenancy.WorkspaceRegistry
	WorkspaceIDForOwner(ctx context.Context, principalID string) (int64, bool, error)
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Create registers the principal's private workspace. The owner column
// carries a unique constraint, so a second activation fails with
// ErrAlreadyExists rather than producing a duplicate tenant.
func (s *PostgresService) Create(ctx context.Context, ownerID string, req *CreateWorkspaceRequest) (*Workspace, error) {
	ws := &Workspace{
		OwnerID:     ownerID,
		DisplayName: req.DisplayName,
	}

	query := `
		INSERT INTO workspaces (owner_id, display_name)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, ws.OwnerID, ws.DisplayName).
		Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return ws, nil
}

// GetByID retrieves a workspace by ID
func (s *PostgresService) GetByID(ctx context.Context, id int64) (*Workspace, error) {
	query := `
		SELECT id, owner_id, display_name, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	ws := &Workspace{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ws.ID, &ws.OwnerID, &ws.DisplayName, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	return ws, nil
}

// GetByOwner retrieves the workspace owned by a principal
func (s *PostgresService) GetByOwner(ctx context.Context, ownerID string) (*Workspace, error) {
	query := `
		SELECT id, owner_id, display_name, created_at, updated_at
		FROM workspaces
		WHERE owner_id = $1
	`
	ws := &Workspace{}
	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(
		&ws.ID, &ws.OwnerID, &ws.DisplayName, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace by owner: %w", err)
	}

	return ws, nil
}

// WorkspaceIDForOwner returns the id of the principal's workspace, if one
// exists. Implements tenancy.WorkspaceRegistry.
func (s *PostgresService) WorkspaceIDForOwner(ctx context.Context, principalID string) (int64, bool, error) {
	query := `SELECT id FROM workspaces WHERE owner_id = $1`

	var id int64
	err := s.db.QueryRowContext(ctx, query, principalID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up workspace owner: %w", err)
	}

	return id, true, nil
}
