package tenancy

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresPreferences implements PreferenceStore using PostgreSQL
type PostgresPreferences struct {
	db *sql.DB
}

// NewPostgresPreferences creates a new PostgresPreferences
func NewPostgresPreferences(db *sql.DB) *PostgresPreferences {
	return &PostgresPreferences{db: db}
}

// LastUsedTenant returns the persisted last-used tenant for a principal, or
// nil if the principal has never resolved a tenant.
func (p *PostgresPreferences) LastUsedTenant(ctx context.Context, principalID string) (*TenantRef, error) {
	query := `
		SELECT tenant_type, tenant_id
		FROM tenant_preferences
		WHERE principal_id = $1
	`
	ref := &TenantRef{}
	err := p.db.QueryRowContext(ctx, query, principalID).Scan(&ref.Type, &ref.ID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last used tenant: %w", err)
	}

	return ref, nil
}

// SetLastUsedTenant records the tenant a principal just resolved to
func (p *PostgresPreferences) SetLastUsedTenant(ctx context.Context, principalID string, ref TenantRef) error {
	query := `
		INSERT INTO tenant_preferences (principal_id, tenant_type, tenant_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (principal_id) DO UPDATE
		SET tenant_type = EXCLUDED.tenant_type, tenant_id = EXCLUDED.tenant_id, updated_at = NOW()
	`
	_, err := p.db.ExecContext(ctx, query, principalID, ref.Type, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to set last used tenant: %w", err)
	}

	return nil
}
