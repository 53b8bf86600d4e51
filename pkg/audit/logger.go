package audit

import (
	"context"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// Logger is the interface audit event producers write to
type Logger interface {
	Log(ctx context.Context, event *Event) error
}

// NopLogger discards all events. Useful in tests and tooling that does not
// need an audit trail.
type NopLogger struct{}

// Log discards the event
func (NopLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

// MultiLogger fans each event out to every wrapped logger. All loggers are
// attempted; the first error encountered is returned.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a fan-out logger
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log delivers the event to every wrapped logger
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// tenantFields copies the acting tenant onto an event
func tenantFields(event *Event, tc tenancy.TenantContext) {
	event.PrincipalID = tc.PrincipalID
	event.TenantType = tc.Type
	tenantID := tc.TenantID
	event.TenantID = &tenantID
}

// AccessDenied builds an authorization denial event
func AccessDenied(tc tenancy.TenantContext, action, reason string) *Event {
	event := &Event{
		EventType: EventTypeAccessDenied,
		Severity:  SeverityWarning,
		Action:    action,
		Details:   map[string]any{"reason": reason},
	}
	tenantFields(event, tc)
	return event
}

// IntegrityViolation builds an alert event for a constraint trip on a
// governed table.
func IntegrityViolation(tc tenancy.TenantContext, table, constraint string) *Event {
	event := &Event{
		EventType: EventTypeIntegrityViolation,
		Severity:  SeverityAlert,
		Resource:  table,
		Details:   map[string]any{"constraint": constraint},
	}
	tenantFields(event, tc)
	return event
}

// RecordMutation builds an event for a governed record write
func RecordMutation(eventType EventType, tc tenancy.TenantContext, collection, recordID string) *Event {
	event := &Event{
		EventType:  eventType,
		Severity:   SeverityInfo,
		Resource:   collection,
		ResourceID: recordID,
	}
	tenantFields(event, tc)
	return event
}

// MembershipChange builds an event for a membership lifecycle transition
func MembershipChange(eventType EventType, clinicID int64, actorID, subjectID string) *Event {
	return &Event{
		EventType:   eventType,
		Severity:    SeverityInfo,
		PrincipalID: actorID,
		TenantType:  tenancy.TenantTypeClinic,
		TenantID:    &clinicID,
		Resource:    "membership",
		ResourceID:  subjectID,
	}
}

// TenantSelectionRejected builds an event recording that a principal asked
// for a tenant they are not eligible for.
func TenantSelectionRejected(principalID string, hint tenancy.TenantRef) *Event {
	hintID := hint.ID
	return &Event{
		EventType:   EventTypeTenantSelectionRejected,
		Severity:    SeverityWarning,
		PrincipalID: principalID,
		TenantType:  hint.Type,
		TenantID:    &hintID,
	}
}

// TenantResolved builds an event recording which tenant a principal
// resolved into.
func TenantResolved(tc tenancy.TenantContext) *Event {
	event := &Event{
		EventType: EventTypeTenantResolved,
		Severity:  SeverityInfo,
	}
	tenantFields(event, tc)
	return event
}
