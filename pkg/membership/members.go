package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// DefaultInvitationTTL is how long an invitation stays acceptable unless
// overridden with WithInvitationTTL.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Invite creates an invited membership for the principal. An existing
// invited or active membership in the same clinic blocks the invitation; a
// deactivated one does not, since re-invitation creates a fresh row.
func (s *PostgresService) Invite(ctx context.Context, clinicID int64, invitedBy string, req *InviteRequest) (*Membership, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", req.Role)
	}
	if req.Role == tenancy.RoleOwner {
		return nil, fmt.Errorf("owner memberships are not created by invitation")
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}

	m := &Membership{
		ClinicID:    clinicID,
		PrincipalID: req.PrincipalID,
		Role:        req.Role,
		State:       StateInvited,
		InvitedBy:   &invitedBy,
		InviteToken: token,
	}

	expiresAt := time.Now().Add(s.ttl)
	query := `
		INSERT INTO clinic_memberships (clinic_id, principal_id, role, state, invited_by, invite_token, expires_at, last_active_at)
		VALUES ($1, $2, $3, 'invited', $4, $5, $6, NOW())
		RETURNING id, invited_at, created_at
	`
	err = s.db.QueryRowContext(ctx, query, clinicID, req.PrincipalID, req.Role, invitedBy, token, expiresAt).
		Scan(&m.ID, &m.InvitedAt, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	m.ExpiresAt = &expiresAt

	return m, nil
}

// AcceptInvitation activates an invited membership. The token must belong to
// the accepting principal and must not be expired; the row is locked for the
// duration of the transition.
func (s *PostgresService) AcceptInvitation(ctx context.Context, token string, principalID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, principal_id, state, expires_at
		FROM clinic_memberships
		WHERE invite_token = $1
		FOR UPDATE
	`
	var id int64
	var invitedPrincipal string
	var state State
	var expiresAt sql.NullTime

	err = tx.QueryRowContext(ctx, query, token).Scan(&id, &invitedPrincipal, &state, &expiresAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("invitation not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	if invitedPrincipal != principalID {
		// Conflated with absence: a token for someone else reveals nothing.
		return fmt.Errorf("invitation not found")
	}
	if state != StateInvited {
		return fmt.Errorf("invitation is no longer open")
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		return fmt.Errorf("invitation expired")
	}

	query = `
		UPDATE clinic_memberships
		SET state = 'active', activated_at = NOW(), last_active_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to activate membership: %w", err)
	}

	return tx.Commit()
}

// Deactivate moves a membership to the terminal deactivated state, covering
// both admin removal and self-leave. The last active owner of a clinic
// cannot be deactivated (LastOwnerError); promote a successor first.
func (s *PostgresService) Deactivate(ctx context.Context, clinicID int64, principalID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role tenancy.Role
	query := `
		SELECT role FROM clinic_memberships
		WHERE clinic_id = $1 AND principal_id = $2 AND state IN ('invited', 'active')
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, query, clinicID, principalID).Scan(&role)
	if err == sql.ErrNoRows {
		return tenancy.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	if role == tenancy.RoleOwner {
		var owners int
		query = `
			SELECT COUNT(*) FROM clinic_memberships
			WHERE clinic_id = $1 AND role = 'owner' AND state = 'active'
		`
		if err := tx.QueryRowContext(ctx, query, clinicID).Scan(&owners); err != nil {
			return fmt.Errorf("failed to count active owners: %w", err)
		}
		if owners <= 1 {
			return &LastOwnerError{ClinicID: clinicID, PrincipalID: principalID}
		}
	}

	query = `
		UPDATE clinic_memberships
		SET state = 'deactivated', deactivated_at = NOW()
		WHERE clinic_id = $1 AND principal_id = $2 AND state IN ('invited', 'active')
	`
	if _, err := tx.ExecContext(ctx, query, clinicID, principalID); err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}

	return tx.Commit()
}

// UpdateRole changes the role of an active membership. Demoting the last
// active owner is rejected for the same reason deactivating them is.
func (s *PostgresService) UpdateRole(ctx context.Context, clinicID int64, principalID string, role tenancy.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current tenancy.Role
	query := `
		SELECT role FROM clinic_memberships
		WHERE clinic_id = $1 AND principal_id = $2 AND state = 'active'
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, query, clinicID, principalID).Scan(&current)
	if err == sql.ErrNoRows {
		return tenancy.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	if current == tenancy.RoleOwner && role != tenancy.RoleOwner {
		var owners int
		countQuery := `
			SELECT COUNT(*) FROM clinic_memberships
			WHERE clinic_id = $1 AND role = 'owner' AND state = 'active'
		`
		if err := tx.QueryRowContext(ctx, countQuery, clinicID).Scan(&owners); err != nil {
			return fmt.Errorf("failed to count active owners: %w", err)
		}
		if owners <= 1 {
			return &LastOwnerError{ClinicID: clinicID, PrincipalID: principalID}
		}
	}

	query = `
		UPDATE clinic_memberships
		SET role = $1
		WHERE clinic_id = $2 AND principal_id = $3 AND state = 'active'
	`
	if _, err := tx.ExecContext(ctx, query, role, clinicID, principalID); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	return tx.Commit()
}

// ListMembers retrieves all memberships of a clinic, including deactivated
// rows (the audit trail).
func (s *PostgresService) ListMembers(ctx context.Context, clinicID int64) ([]*Membership, error) {
	query := `
		SELECT id, clinic_id, principal_id, role, state, invited_by, invited_at,
		       expires_at, activated_at, deactivated_at, last_active_at, created_at
		FROM clinic_memberships
		WHERE clinic_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// GetMembership retrieves the most recent membership row for the principal
// in a clinic, whatever its state.
func (s *PostgresService) GetMembership(ctx context.Context, clinicID int64, principalID string) (*Membership, error) {
	query := `
		SELECT id, clinic_id, principal_id, role, state, invited_by, invited_at,
		       expires_at, activated_at, deactivated_at, last_active_at, created_at
		FROM clinic_memberships
		WHERE clinic_id = $1 AND principal_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, clinicID, principalID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// CleanupExpiredInvitations deactivates invited memberships whose token has
// expired. Rows are retained, not deleted; a new invitation creates a new row.
func (s *PostgresService) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	query := `
		UPDATE clinic_memberships
		SET state = 'deactivated', deactivated_at = NOW()
		WHERE state = 'invited' AND expires_at < NOW()
	`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}

	return result.RowsAffected()
}

// scanMembership scans a membership from a database row
func scanMembership(scanner interface {
	Scan(dest ...interface{}) error
}) (*Membership, error) {
	m := &Membership{}
	var invitedBy sql.NullString
	var expiresAt, activatedAt, deactivatedAt sql.NullTime

	err := scanner.Scan(
		&m.ID, &m.ClinicID, &m.PrincipalID, &m.Role, &m.State,
		&invitedBy, &m.InvitedAt, &expiresAt, &activatedAt, &deactivatedAt,
		&m.LastActiveAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if invitedBy.Valid {
		v := invitedBy.String
		m.InvitedBy = &v
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		m.ExpiresAt = &t
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		m.ActivatedAt = &t
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		m.DeactivatedAt = &t
	}

	return m, nil
}
