package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// DBLogger persists audit events to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts the event and fills in its assigned ID and timestamp
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	query := `
		INSERT INTO audit_events (
			event_type, severity, principal_id,
			tenant_type, tenant_id,
			resource, resource_id, action, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err = l.db.QueryRowContext(ctx, query,
		event.EventType, event.Severity, nullString(event.PrincipalID),
		nullString(string(event.TenantType)), event.TenantID,
		nullString(event.Resource), nullString(event.ResourceID), nullString(event.Action),
		detailsJSON,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search returns events matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conditions []string
	var args []any

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.StartTime != nil {
		addCondition("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		addCondition("created_at <= $%d", *filter.EndTime)
	}
	if filter.PrincipalID != "" {
		addCondition("principal_id = $%d", filter.PrincipalID)
	}
	if filter.TenantType != "" {
		addCondition("tenant_type = $%d", string(filter.TenantType))
	}
	if filter.TenantID != nil {
		addCondition("tenant_id = $%d", *filter.TenantID)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			args = append(args, string(et))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Severity != "" {
		addCondition("severity = $%d", string(filter.Severity))
	}
	if filter.Resource != "" {
		addCondition("resource = $%d", filter.Resource)
	}

	query := `
		SELECT id, event_type, severity, principal_id,
			tenant_type, tenant_id,
			resource, resource_id, action, details, created_at
		FROM audit_events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}
	return events, nil
}

// Purge removes events older than the retention window and returns how many
// rows were deleted. Audit rows are the one place deletion is allowed, and
// only by age.
func (l *DBLogger) Purge(ctx context.Context, retainFor time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retainFor)

	result, err := l.db.ExecContext(ctx,
		"DELETE FROM audit_events WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}

	return result.RowsAffected()
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var principalID, tenantType, resource, resourceID, action sql.NullString
	var tenantID sql.NullInt64
	var detailsJSON []byte

	err := rows.Scan(
		&event.ID, &event.EventType, &event.Severity, &principalID,
		&tenantType, &tenantID,
		&resource, &resourceID, &action, &detailsJSON, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.PrincipalID = principalID.String
	event.Resource = resource.String
	event.ResourceID = resourceID.String
	event.Action = action.String
	if tenantType.Valid {
		event.TenantType = tenancy.TenantType(tenantType.String)
	}
	if tenantID.Valid {
		event.TenantID = &tenantID.Int64
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}
	return &event, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
