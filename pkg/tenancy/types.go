package tenancy

import "time"

// TenantType distinguishes the two tenancy models
type TenantType string

const (
	// TenantTypeClinic is a shared tenant with role-based memberships
	TenantTypeClinic TenantType = "clinic"
	// TenantTypeWorkspace is a private tenant owned by a single principal
	TenantTypeWorkspace TenantType = "workspace"
)

// Valid reports whether t is a known tenant type
func (t TenantType) Valid() bool {
	return t == TenantTypeClinic || t == TenantTypeWorkspace
}

// Role represents a principal's role within a clinic
type Role string

const (
	RoleMember Role = "member" // Baseline CRUD on clinic-shared records
	RoleAdmin  Role = "admin"  // Member + membership and settings management
	RoleOwner  Role = "owner"  // Admin + clinic deletion and ownership transfer
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin || r == RoleOwner
}

// TenantRef identifies a tenant without resolving it
type TenantRef struct {
	Type TenantType `json:"type"`
	ID   int64      `json:"id"`
}

// TenantContext is the resolved, request-scoped determination of which
// tenant's data is in scope for the current call. It is always passed
// explicitly as a value and never stored in process-global state, so
// membership revocation takes effect on the principal's next request.
type TenantContext struct {
	Type        TenantType `json:"type"`
	TenantID    int64      `json:"tenant_id"`
	PrincipalID string     `json:"principal_id"`

	// Role is set only for clinic contexts; workspace contexts carry no role.
	Role Role `json:"role,omitempty"`
}

// Ref returns the tenant reference for this context
func (c *TenantContext) Ref() TenantRef {
	return TenantRef{Type: c.Type, ID: c.TenantID}
}

// IsClinic reports whether the context is bound to a clinic tenant
func (c *TenantContext) IsClinic() bool {
	return c.Type == TenantTypeClinic
}

// IsWorkspace reports whether the context is bound to a workspace tenant
func (c *TenantContext) IsWorkspace() bool {
	return c.Type == TenantTypeWorkspace
}

// ClinicCandidate is an active clinic membership eligible for resolution
type ClinicCandidate struct {
	ClinicID     int64     `json:"clinic_id"`
	Role         Role      `json:"role"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Candidates is the full candidate set for a principal
type Candidates struct {
	Clinics     []ClinicCandidate `json:"clinics"`
	WorkspaceID *int64            `json:"workspace_id,omitempty"`
}

// Empty reports whether the principal has no eligible tenant at all
func (c Candidates) Empty() bool {
	return len(c.Clinics) == 0 && c.WorkspaceID == nil
}

// Contains reports whether ref is in the candidate set
func (c Candidates) Contains(ref TenantRef) bool {
	switch ref.Type {
	case TenantTypeClinic:
		for _, m := range c.Clinics {
			if m.ClinicID == ref.ID {
				return true
			}
		}
	case TenantTypeWorkspace:
		return c.WorkspaceID != nil && *c.WorkspaceID == ref.ID
	}
	return false
}

// clinicRole returns the role held in the given clinic, if any
func (c Candidates) clinicRole(clinicID int64) (Role, bool) {
	for _, m := range c.Clinics {
		if m.ClinicID == clinicID {
			return m.Role, true
		}
	}
	return "", false
}
