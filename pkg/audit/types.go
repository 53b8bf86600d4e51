package audit

import (
	"encoding/json"
	"time"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// EventType represents the category of audit event
type EventType string

const (
	// Tenancy events
	EventTypeTenantResolved          EventType = "tenancy.resolved"
	EventTypeTenantSelectionRejected EventType = "tenancy.selection_rejected"

	// Authorization events
	EventTypeAccessDenied EventType = "authz.access_denied"

	// Membership lifecycle events
	EventTypeMemberInvited     EventType = "membership.invited"
	EventTypeMemberActivated   EventType = "membership.activated"
	EventTypeMemberDeactivated EventType = "membership.deactivated"
	EventTypeMemberRoleChanged EventType = "membership.role_changed"

	// Tenant admin events
	EventTypeClinicCreated    EventType = "admin.clinic_created"
	EventTypeWorkspaceCreated EventType = "admin.workspace_created"
	EventTypeOverridesUpdated EventType = "admin.overrides_updated"

	// Governed record events
	EventTypeRecordCreated EventType = "record.created"
	EventTypeRecordUpdated EventType = "record.updated"
	EventTypeRecordDeleted EventType = "record.deleted"

	// Integrity events. A constraint trip on a governed table means
	// application-level scoping failed somewhere upstream, so these alert.
	EventTypeIntegrityViolation EventType = "integrity.violation"
)

// Severity classifies how urgently an event needs attention
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAlert   Severity = "alert"
)

// Event represents a single audit log entry
type Event struct {
	ID          int64              `json:"id"`
	EventType   EventType          `json:"event_type"`
	Severity    Severity           `json:"severity"`
	PrincipalID string             `json:"principal_id,omitempty"`
	TenantType  tenancy.TenantType `json:"tenant_type,omitempty"`
	TenantID    *int64             `json:"tenant_id,omitempty"`
	Resource    string             `json:"resource,omitempty"`
	ResourceID  string             `json:"resource_id,omitempty"`
	Action      string             `json:"action,omitempty"`
	Details     map[string]any     `json:"details,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for querying audit events
type SearchFilter struct {
	StartTime   *time.Time
	EndTime     *time.Time
	PrincipalID string
	TenantType  tenancy.TenantType
	TenantID    *int64
	EventTypes  []EventType
	Severity    Severity
	Resource    string

	Limit  int
	Offset int
}
