package rbac

import (
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// Action represents an action a principal can perform inside a tenant
type Action string

const (
	// Baseline CRUD on clinic-shared governed records, per domain area
	ActionViewPatients        Action = "view_patients"
	ActionManagePatients      Action = "manage_patients"
	ActionViewConsultations   Action = "view_consultations"
	ActionManageConsultations Action = "manage_consultations"
	ActionViewAppointments    Action = "view_appointments"
	ActionManageAppointments  Action = "manage_appointments"
	ActionViewAssessments     Action = "view_assessments"
	ActionManageAssessments   Action = "manage_assessments"
	ActionViewFinance         Action = "view_finance"
	ActionManageFinance       Action = "manage_finance"
	ActionViewResources       Action = "view_resources"
	ActionManageResources     Action = "manage_resources"
	ActionViewForms           Action = "view_forms"
	ActionManageForms         Action = "manage_forms"

	// Membership and configuration management
	ActionInviteUser      Action = "invite_user"
	ActionRemoveUser      Action = "remove_user"
	ActionUpdateRole      Action = "update_role"
	ActionManageSettings  Action = "manage_settings"
	ActionManageOverrides Action = "manage_overrides"

	// Owner-only
	ActionDeleteClinic      Action = "delete_clinic"
	ActionTransferOwnership Action = "transfer_ownership"
)

// AllActions returns every known action, usable to enumerate the full
// permission matrix in tests and override validation.
func AllActions() []Action {
	return []Action{
		ActionViewPatients, ActionManagePatients,
		ActionViewConsultations, ActionManageConsultations,
		ActionViewAppointments, ActionManageAppointments,
		ActionViewAssessments, ActionManageAssessments,
		ActionViewFinance, ActionManageFinance,
		ActionViewResources, ActionManageResources,
		ActionViewForms, ActionManageForms,
		ActionInviteUser, ActionRemoveUser, ActionUpdateRole,
		ActionManageSettings, ActionManageOverrides,
		ActionDeleteClinic, ActionTransferOwnership,
	}
}

// Known reports whether a is a defined action
func (a Action) Known() bool {
	for _, known := range AllActions() {
		if a == known {
			return true
		}
	}
	return false
}

// memberActions is the baseline granted to every active clinic membership
var memberActions = []Action{
	ActionViewPatients, ActionManagePatients,
	ActionViewConsultations, ActionManageConsultations,
	ActionViewAppointments, ActionManageAppointments,
	ActionViewAssessments, ActionManageAssessments,
	ActionViewFinance, ActionManageFinance,
	ActionViewResources, ActionManageResources,
	ActionViewForms, ActionManageForms,
}

// adminActions adds membership and shared-configuration management
var adminActions = append(append([]Action{}, memberActions...),
	ActionInviteUser, ActionRemoveUser, ActionUpdateRole,
	ActionManageSettings, ActionManageOverrides,
)

// ownerActions adds clinic deletion and ownership transfer
var ownerActions = append(append([]Action{}, adminActions...),
	ActionDeleteClinic, ActionTransferOwnership,
)

// DefaultMatrix returns the static role to allowed-actions default table.
// Per-clinic overrides can only narrow it.
func DefaultMatrix() map[tenancy.Role][]Action {
	return map[tenancy.Role][]Action{
		tenancy.RoleMember: memberActions,
		tenancy.RoleAdmin:  adminActions,
		tenancy.RoleOwner:  ownerActions,
	}
}

// DefaultAllows reports whether the default matrix grants action to role
func DefaultAllows(role tenancy.Role, action Action) bool {
	for _, a := range DefaultMatrix()[role] {
		if a == action {
			return true
		}
	}
	return false
}

// Effect is the tagged variant carried by an override entry
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Overrides is a clinic's typed role-permission override map, merged over
// the default matrix at evaluation time. Overrides can only narrow a role's
// default privileges: an allow entry for an action the role does not hold by
// default is rejected at write time (see Validate).
type Overrides map[tenancy.Role]map[Action]Effect

// Denies reports whether the override map denies action for role
func (o Overrides) Denies(role tenancy.Role, action Action) bool {
	if o == nil {
		return false
	}
	return o[role][action] == EffectDeny
}

// Validate checks the override map for unknown roles or actions, unknown
// effects, and widening entries.
func (o Overrides) Validate() error {
	for role, entries := range o {
		if !role.Valid() {
			return fmt.Errorf("unknown role %q in overrides", role)
		}
		for action, effect := range entries {
			if !action.Known() {
				return fmt.Errorf("unknown action %q in overrides for role %q", action, role)
			}
			if effect != EffectAllow && effect != EffectDeny {
				return fmt.Errorf("unknown effect %q for %q/%q", effect, role, action)
			}
			if effect == EffectAllow && !DefaultAllows(role, action) {
				return &WideningOverrideError{Role: role, Action: action}
			}
		}
	}
	return nil
}

// WideningOverrideError is returned when an override attempts to grant a
// role an action beyond its defaults.
type WideningOverrideError struct {
	Role   tenancy.Role
	Action Action
}

func (e *WideningOverrideError) Error() string {
	return fmt.Sprintf("override widens role %q: %q is not a default privilege", e.Role, e.Action)
}

// IsWideningOverride checks if an error is a WideningOverrideError
func IsWideningOverride(err error) bool {
	var w *WideningOverrideError
	return errors.As(err, &w)
}

// Decision is the outcome of a permission evaluation
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
