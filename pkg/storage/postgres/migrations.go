package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the full schema, in apply order. Every governed
// record table carries exactly one owner column pair: clinic_id XOR
// workspace_id, enforced by a CHECK constraint named <table>_owner_exclusive.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create clinics table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clinics (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					settings JSONB NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_clinics_name ON clinics(name);
				CREATE INDEX idx_clinics_is_active ON clinics(is_active);
			`,
		},
		{
			Version:     2,
			Description: "Create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id BIGSERIAL PRIMARY KEY,
					owner_id VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_workspaces_owner_id ON workspaces(owner_id);
			`,
		},
		{
			Version:     3,
			Description: "Create clinic_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clinic_memberships (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT NOT NULL REFERENCES clinics(id),
					principal_id VARCHAR(255) NOT NULL,
					role VARCHAR(50) NOT NULL,
					state VARCHAR(50) NOT NULL DEFAULT 'invited',
					invited_by VARCHAR(255),
					invite_token VARCHAR(255),
					invited_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP,
					activated_at TIMESTAMP,
					deactivated_at TIMESTAMP,
					last_active_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT clinic_memberships_state_check
						CHECK (state IN ('invited', 'active', 'deactivated'))
				);

				CREATE INDEX idx_clinic_memberships_clinic_id ON clinic_memberships(clinic_id);
				CREATE INDEX idx_clinic_memberships_principal_id ON clinic_memberships(principal_id);
				CREATE INDEX idx_clinic_memberships_state ON clinic_memberships(state);
				CREATE INDEX idx_clinic_memberships_expires_at ON clinic_memberships(expires_at)
					WHERE state = 'invited';
				CREATE UNIQUE INDEX idx_clinic_memberships_token ON clinic_memberships(invite_token)
					WHERE invite_token IS NOT NULL;
				CREATE UNIQUE INDEX idx_clinic_memberships_live ON clinic_memberships(clinic_id, principal_id)
					WHERE state <> 'deactivated';
			`,
		},
		{
			Version:     4,
			Description: "Create tenant_preferences table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_preferences (
					principal_id VARCHAR(255) PRIMARY KEY,
					tenant_type VARCHAR(50) NOT NULL,
					tenant_id BIGINT NOT NULL,
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     5,
			Description: "Create clinic_role_overrides table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clinic_role_overrides (
					clinic_id BIGINT PRIMARY KEY REFERENCES clinics(id),
					overrides JSONB NOT NULL DEFAULT '{}',
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     6,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(100) NOT NULL,
					severity VARCHAR(50) NOT NULL,
					principal_id VARCHAR(255),
					tenant_type VARCHAR(50),
					tenant_id BIGINT,
					resource VARCHAR(100),
					resource_id VARCHAR(255),
					action VARCHAR(100),
					details JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_event_type ON audit_events(event_type);
				CREATE INDEX idx_audit_events_principal_id ON audit_events(principal_id);
				CREATE INDEX idx_audit_events_tenant ON audit_events(tenant_type, tenant_id);
				CREATE INDEX idx_audit_events_created_at ON audit_events(created_at);
			`,
		},
		{
			Version:     7,
			Description: "Create patients table",
			SQL: `
				CREATE TABLE IF NOT EXISTS patients (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					full_name VARCHAR(255) NOT NULL,
					date_of_birth DATE,
					contact JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT patients_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_patients_clinic_id ON patients(clinic_id);
				CREATE INDEX idx_patients_workspace_id ON patients(workspace_id);
			`,
		},
		{
			Version:     8,
			Description: "Create consultations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS consultations (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					patient_id BIGINT,
					summary TEXT,
					occurred_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT consultations_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_consultations_clinic_id ON consultations(clinic_id);
				CREATE INDEX idx_consultations_workspace_id ON consultations(workspace_id);
				CREATE INDEX idx_consultations_patient_id ON consultations(patient_id);
			`,
		},
		{
			Version:     9,
			Description: "Create appointments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS appointments (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					patient_id BIGINT,
					scheduled_at TIMESTAMP,
					status VARCHAR(50) NOT NULL DEFAULT 'scheduled',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT appointments_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_appointments_clinic_id ON appointments(clinic_id);
				CREATE INDEX idx_appointments_workspace_id ON appointments(workspace_id);
				CREATE INDEX idx_appointments_scheduled_at ON appointments(scheduled_at);
			`,
		},
		{
			Version:     10,
			Description: "Create assessments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS assessments (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					patient_id BIGINT,
					template VARCHAR(255),
					responses JSONB NOT NULL DEFAULT '{}',
					completed_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT assessments_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_assessments_clinic_id ON assessments(clinic_id);
				CREATE INDEX idx_assessments_workspace_id ON assessments(workspace_id);
			`,
		},
		{
			Version:     11,
			Description: "Create finance_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS finance_entries (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					amount_cents BIGINT NOT NULL,
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					description TEXT,
					entry_date DATE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT finance_entries_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_finance_entries_clinic_id ON finance_entries(clinic_id);
				CREATE INDEX idx_finance_entries_workspace_id ON finance_entries(workspace_id);
			`,
		},
		{
			Version:     12,
			Description: "Create resources table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resources (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL,
					kind VARCHAR(100),
					capacity INT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT resources_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_resources_clinic_id ON resources(clinic_id);
				CREATE INDEX idx_resources_workspace_id ON resources(workspace_id);
			`,
		},
		{
			Version:     13,
			Description: "Create forms table",
			SQL: `
				CREATE TABLE IF NOT EXISTS forms (
					id BIGSERIAL PRIMARY KEY,
					clinic_id BIGINT REFERENCES clinics(id),
					workspace_id BIGINT REFERENCES workspaces(id),
					created_by VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL,
					schema JSONB NOT NULL DEFAULT '{}',
					is_published BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT forms_owner_exclusive
						CHECK ((clinic_id IS NULL) <> (workspace_id IS NULL))
				);

				CREATE INDEX idx_forms_clinic_id ON forms(clinic_id);
				CREATE INDEX idx_forms_workspace_id ON forms(workspace_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
