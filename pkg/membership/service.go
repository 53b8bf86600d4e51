package membership

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// Service defines the interface for the membership directory
type Service interface {
	// Clinic management
	CreateClinic(ctx context.Context, creatorID string, req *CreateClinicRequest) (*Clinic, error)
	GetClinic(ctx context.Context, id int64) (*Clinic, error)

	// Membership lifecycle
	Invite(ctx context.Context, clinicID int64, invitedBy string, req *InviteRequest) (*Membership, error)
	AcceptInvitation(ctx context.Context, token string, principalID string) error
	Deactivate(ctx context.Context, clinicID int64, principalID string) error
	UpdateRole(ctx context.Context, clinicID int64, principalID string, role tenancy.Role) error
	ListMembers(ctx context.Context, clinicID int64) ([]*Membership, error)
	GetMembership(ctx context.Context, clinicID int64, principalID string) (*Membership, error)
	CleanupExpiredInvitations(ctx context.Context) (int64, error)

	// Resolver integration
	ActiveClinics(ctx context.Context, principalID string) ([]tenancy.ClinicCandidate, error)
	TouchActivity(ctx context.Context, clinicID int64, principalID string) error
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db, ttl: DefaultInvitationTTL}
}

// WithInvitationTTL overrides how long invitations stay acceptable
func (s *PostgresService) WithInvitationTTL(ttl time.Duration) *PostgresService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// CreateClinic creates a clinic together with the creator's active owner
// membership in a single transaction. A clinic is never ownerless, not even
// momentarily.
func (s *PostgresService) CreateClinic(ctx context.Context, creatorID string, req *CreateClinicRequest) (*Clinic, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("clinic name is required")
	}

	settingsJSON, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	clinic := &Clinic{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Settings:    req.Settings,
		IsActive:    true,
	}

	query := `
		INSERT INTO clinics (name, display_name, settings, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, clinic.Name, clinic.DisplayName, settingsJSON).
		Scan(&clinic.ID, &clinic.CreatedAt, &clinic.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create clinic: %w", err)
	}

	query = `
		INSERT INTO clinic_memberships (clinic_id, principal_id, role, state, activated_at, last_active_at)
		VALUES ($1, $2, $3, 'active', NOW(), NOW())
	`
	if _, err := tx.ExecContext(ctx, query, clinic.ID, creatorID, tenancy.RoleOwner); err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit clinic creation: %w", err)
	}

	return clinic, nil
}

// GetClinic retrieves a clinic by ID
func (s *PostgresService) GetClinic(ctx context.Context, id int64) (*Clinic, error) {
	query := `
		SELECT id, name, display_name, settings, is_active, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`
	clinic := &Clinic{}
	var settingsJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&clinic.ID, &clinic.Name, &clinic.DisplayName, &settingsJSON,
		&clinic.IsActive, &clinic.CreatedAt, &clinic.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &clinic.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return clinic, nil
}

// ActiveClinics returns the clinics where the principal holds an active
// membership, ordered by most recent activity. Implements
// tenancy.MembershipDirectory; invited and deactivated memberships are
// excluded from the candidate set.
func (s *PostgresService) ActiveClinics(ctx context.Context, principalID string) ([]tenancy.ClinicCandidate, error) {
	query := `
		SELECT m.clinic_id, m.role, m.last_active_at
		FROM clinic_memberships m
		JOIN clinics c ON c.id = m.clinic_id
		WHERE m.principal_id = $1 AND m.state = 'active' AND c.is_active = true
		ORDER BY m.last_active_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active clinics: %w", err)
	}
	defer rows.Close()

	var candidates []tenancy.ClinicCandidate
	for rows.Next() {
		var c tenancy.ClinicCandidate
		if err := rows.Scan(&c.ClinicID, &c.Role, &c.LastActiveAt); err != nil {
			return nil, fmt.Errorf("failed to scan clinic candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// TouchActivity records that the principal acted in the clinic, feeding the
// resolver's most-recently-active default.
func (s *PostgresService) TouchActivity(ctx context.Context, clinicID int64, principalID string) error {
	query := `
		UPDATE clinic_memberships
		SET last_active_at = NOW()
		WHERE clinic_id = $1 AND principal_id = $2 AND state = 'active'
	`
	_, err := s.db.ExecContext(ctx, query, clinicID, principalID)
	if err != nil {
		return fmt.Errorf("failed to touch membership activity: %w", err)
	}

	return nil
}

// generateToken generates a random invitation token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
