package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Store handles persistence of per-clinic role-permission overrides
type Store struct {
	db *sql.DB
}

// NewStore creates a new override store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOverrides loads the override map for a clinic. A clinic with no stored
// overrides gets an empty map, meaning the default matrix applies untouched.
func (s *Store) GetOverrides(ctx context.Context, clinicID int64) (Overrides, error) {
	query := `SELECT overrides FROM clinic_role_overrides WHERE clinic_id = $1`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, clinicID).Scan(&raw)
	if err == sql.ErrNoRows {
		return Overrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get overrides: %w", err)
	}

	var overrides Overrides
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overrides: %w", err)
	}

	return overrides, nil
}

// SetOverrides validates and persists the override map for a clinic.
// Narrowing-only is enforced here, at write time, so evaluation can merge
// without re-validating.
func (s *Store) SetOverrides(ctx context.Context, clinicID int64, overrides Overrides) error {
	if err := overrides.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}

	query := `
		INSERT INTO clinic_role_overrides (clinic_id, overrides, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (clinic_id) DO UPDATE
		SET overrides = EXCLUDED.overrides, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, clinicID, raw); err != nil {
		return fmt.Errorf("failed to set overrides: %w", err)
	}

	return nil
}
