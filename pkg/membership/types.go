package membership

import (
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// Clinic is a shared tenant: a practice with multiple professionals holding
// role-based memberships. Role-permission overrides for a clinic are stored
// and evaluated by pkg/rbac.
type Clinic struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Settings    map[string]any `json:"settings,omitempty"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// State represents the membership lifecycle state. Deactivation is terminal:
// there is no reactivation path, a new invitation creates a new row.
type State string

const (
	StateInvited     State = "invited"
	StateActive      State = "active"
	StateDeactivated State = "deactivated"
)

// Valid reports whether s is a known membership state
func (s State) Valid() bool {
	return s == StateInvited || s == StateActive || s == StateDeactivated
}

// Membership grants a principal a role within a clinic. Rows are retained
// indefinitely for the audit trail and never physically deleted.
type Membership struct {
	ID          int64        `json:"id"`
	ClinicID    int64        `json:"clinic_id"`
	PrincipalID string       `json:"principal_id"`
	Role        tenancy.Role `json:"role"`
	State       State        `json:"state"`

	InvitedBy     *string    `json:"invited_by,omitempty"`
	InviteToken   string     `json:"-"` // Never exposed over the API
	InvitedAt     time.Time  `json:"invited_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	LastActiveAt  time.Time  `json:"last_active_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CreateClinicRequest represents a request to create a clinic
type CreateClinicRequest struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// InviteRequest represents a request to invite a principal into a clinic
type InviteRequest struct {
	PrincipalID string       `json:"principal_id"`
	Role        tenancy.Role `json:"role"`
}

// LastOwnerError is returned when an operation would leave a clinic without
// any active owner membership. Ownership never auto-transfers and a clinic
// never becomes ownerless; the owner must promote a successor first.
type LastOwnerError struct {
	ClinicID    int64
	PrincipalID string
}

func (e *LastOwnerError) Error() string {
	return fmt.Sprintf("principal %s holds the last active owner membership of clinic %d", e.PrincipalID, e.ClinicID)
}

// IsLastOwner checks if an error is a LastOwnerError
func IsLastOwner(err error) bool {
	_, ok := err.(*LastOwnerError)
	return ok
}
