// Package records declares the governed record collections of the platform
// and registers their descriptors with the query scoper.
package records

import (
	"fmt"

	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/scope"
)

// Collections returns the descriptors for every governed record table.
// Column lists must stay in lockstep with the schema migrations.
func Collections() []scope.Collection {
	return []scope.Collection{
		{
			Table:        "patients",
			Columns:      []string{"full_name", "date_of_birth", "contact"},
			ViewAction:   rbac.ActionViewPatients,
			ManageAction: rbac.ActionManagePatients,
		},
		{
			Table:        "consultations",
			Columns:      []string{"patient_id", "summary", "occurred_at"},
			ViewAction:   rbac.ActionViewConsultations,
			ManageAction: rbac.ActionManageConsultations,
		},
		{
			Table:        "appointments",
			Columns:      []string{"patient_id", "scheduled_at", "status"},
			ViewAction:   rbac.ActionViewAppointments,
			ManageAction: rbac.ActionManageAppointments,
		},
		{
			Table:        "assessments",
			Columns:      []string{"patient_id", "template", "responses", "completed_at"},
			ViewAction:   rbac.ActionViewAssessments,
			ManageAction: rbac.ActionManageAssessments,
		},
		{
			Table:        "finance_entries",
			Columns:      []string{"amount_cents", "currency", "description", "entry_date"},
			ViewAction:   rbac.ActionViewFinance,
			ManageAction: rbac.ActionManageFinance,
		},
		{
			Table:        "resources",
			Columns:      []string{"name", "kind", "capacity"},
			ViewAction:   rbac.ActionViewResources,
			ManageAction: rbac.ActionManageResources,
		},
		{
			Table:        "forms",
			Columns:      []string{"name", "schema", "is_published"},
			ViewAction:   rbac.ActionViewForms,
			ManageAction: rbac.ActionManageForms,
		},
	}
}

// RegisterAll registers every governed collection with the registry
func RegisterAll(registry *scope.Registry) error {
	for _, c := range Collections() {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("failed to register collection %s: %w", c.Table, err)
		}
	}
	return nil
}
