package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

// Record is one row of a governed collection. Exactly one of ClinicID and
// WorkspaceID is set; the database CHECK constraint guarantees it.
type Record struct {
	ID          int64          `json:"id"`
	ClinicID    *int64         `json:"clinic_id,omitempty"`
	WorkspaceID *int64         `json:"workspace_id,omitempty"`
	CreatedBy   string         `json:"created_by"`
	Fields      map[string]any `json:"fields"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Scoper executes reads and writes against governed collections with the
// tenant predicate applied on every statement. It never runs a query whose
// WHERE clause does not pin the calling tenant, so a row belonging to
// another tenant is indistinguishable from a row that does not exist.
type Scoper struct {
	db       *sql.DB
	registry *Registry
}

// NewScoper creates a scoper over the given database and collection registry
func NewScoper(db *sql.DB, registry *Registry) *Scoper {
	return &Scoper{db: db, registry: registry}
}

// ownerColumn returns the ownership column the tenant context pins
func ownerColumn(tc tenancy.TenantContext) string {
	if tc.IsClinic() {
		return "clinic_id"
	}
	return "workspace_id"
}

// Create inserts a record into a governed collection. Ownership is stamped
// from the tenant context, never taken from the field map; a field map that
// tries to claim a different owner is rejected with ErrOwnershipMismatch.
func (s *Scoper) Create(ctx context.Context, tc tenancy.TenantContext, collection string, fields map[string]any) (*Record, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	if err := checkOwnershipFields(tc, fields, true); err != nil {
		return nil, err
	}

	columns := []string{ownerColumn(tc), "created_by"}
	args := []any{tc.TenantID, tc.PrincipalID}
	for _, name := range col.Columns {
		if value, ok := fields[name]; ok {
			columns = append(columns, name)
			args = append(args, value)
		}
	}
	for name := range fields {
		if !col.HasColumn(name) && name != "clinic_id" && name != "workspace_id" {
			return nil, fmt.Errorf("unknown column %q for collection %q", name, collection)
		}
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		RETURNING id, created_at, updated_at
	`, col.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	record := &Record{CreatedBy: tc.PrincipalID, Fields: copyFields(col, fields)}
	if tc.IsClinic() {
		record.ClinicID = &tc.TenantID
	} else {
		record.WorkspaceID = &tc.TenantID
	}

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", collection, translateError(col.Table, err))
	}

	return record, nil
}

// Get fetches a single record visible to the tenant. A record owned by a
// different tenant returns ErrNotFound, same as a record that does not exist.
func (s *Scoper) Get(ctx context.Context, tc tenancy.TenantContext, collection string, id int64) (*Record, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, clinic_id, workspace_id, created_by, %s, created_at, updated_at
		FROM %s
		WHERE id = $1 AND %s = $2
	`, strings.Join(col.Columns, ", "), col.Table, ownerColumn(tc))

	record, err := s.scanRecord(s.db.QueryRowContext(ctx, query, id, tc.TenantID), col)
	if err == sql.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", collection, err)
	}
	return record, nil
}

// List returns the tenant's records in a collection, newest first, along with
// the tenant's total count.
func (s *Scoper) List(ctx context.Context, tc tenancy.TenantContext, collection string, limit, offset int) ([]*Record, int64, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}

	owner := ownerColumn(tc)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", col.Table, owner)
	if err := s.db.QueryRowContext(ctx, countQuery, tc.TenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s records: %w", collection, err)
	}

	query := fmt.Sprintf(`
		SELECT id, clinic_id, workspace_id, created_by, %s, created_at, updated_at
		FROM %s
		WHERE %s = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, strings.Join(col.Columns, ", "), col.Table, owner)

	rows, err := s.db.QueryContext(ctx, query, tc.TenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s records: %w", collection, err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := s.scanRecord(rows, col)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s record: %w", collection, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read %s records: %w", collection, err)
	}

	return records, total, nil
}

// Update modifies a record's data columns. Ownership columns are immutable:
// any attempt to set clinic_id or workspace_id fails with
// ErrOwnershipMismatch before a statement is issued. A record owned by a
// different tenant returns ErrNotFound.
func (s *Scoper) Update(ctx context.Context, tc tenancy.TenantContext, collection string, id int64, fields map[string]any) (*Record, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	if err := checkOwnershipFields(tc, fields, false); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no columns to update for collection %q", collection)
	}

	var assignments []string
	args := []any{id, tc.TenantID}
	for _, name := range col.Columns {
		if value, ok := fields[name]; ok {
			args = append(args, value)
			assignments = append(assignments, fmt.Sprintf("%s = $%d", name, len(args)))
		}
	}
	for name := range fields {
		if !col.HasColumn(name) {
			return nil, fmt.Errorf("unknown column %q for collection %q", name, collection)
		}
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s, updated_at = NOW()
		WHERE id = $1 AND %s = $2
		RETURNING id, clinic_id, workspace_id, created_by, %s, created_at, updated_at
	`, col.Table, strings.Join(assignments, ", "), ownerColumn(tc), strings.Join(col.Columns, ", "))

	record, err := s.scanRecord(s.db.QueryRowContext(ctx, query, args...), col)
	if err == sql.ErrNoRows {
		return nil, tenancy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update %s record: %w", collection, translateError(col.Table, err))
	}
	return record, nil
}

// Delete removes a record from a governed collection. A record owned by a
// different tenant returns ErrNotFound.
func (s *Scoper) Delete(ctx context.Context, tc tenancy.TenantContext, collection string, id int64) error {
	col, err := s.registry.Get(collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND %s = $2", col.Table, ownerColumn(tc))

	result, err := s.db.ExecContext(ctx, query, id, tc.TenantID)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", collection, translateError(col.Table, err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", collection, err)
	}
	if affected == 0 {
		return tenancy.ErrNotFound
	}
	return nil
}

// checkOwnershipFields rejects field maps that try to steer ownership.
// On create, an explicit owner matching the tenant context is tolerated and
// ignored; on update, any ownership key at all is a retarget attempt.
func checkOwnershipFields(tc tenancy.TenantContext, fields map[string]any, create bool) error {
	for _, key := range []string{"clinic_id", "workspace_id"} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if !create {
			return fmt.Errorf("%w: %s cannot be changed", tenancy.ErrOwnershipMismatch, key)
		}
		if key != ownerColumn(tc) {
			return fmt.Errorf("%w: record cannot be owned by a %s", tenancy.ErrOwnershipMismatch, key)
		}
		id, ok := coerceID(value)
		if !ok || id != tc.TenantID {
			return fmt.Errorf("%w: %s does not match the active tenant", tenancy.ErrOwnershipMismatch, key)
		}
	}
	return nil
}

func coerceID(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	default:
		return 0, false
	}
}

func copyFields(col Collection, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, name := range col.Columns {
		if value, ok := fields[name]; ok {
			out[name] = value
		}
	}
	return out
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Scoper) scanRecord(row rowScanner, col Collection) (*Record, error) {
	record := &Record{Fields: make(map[string]any, len(col.Columns))}

	var clinicID, workspaceID sql.NullInt64
	values := make([]any, len(col.Columns))

	dest := []any{&record.ID, &clinicID, &workspaceID, &record.CreatedBy}
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &record.CreatedAt, &record.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if clinicID.Valid {
		record.ClinicID = &clinicID.Int64
	}
	if workspaceID.Valid {
		record.WorkspaceID = &workspaceID.Int64
	}
	for i, name := range col.Columns {
		record.Fields[name] = normalizeValue(values[i])
	}
	return record, nil
}

// normalizeValue converts driver byte slices to strings so JSON encoding of
// a record is stable.
func normalizeValue(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// translateError maps PostgreSQL integrity errors onto the typed
// IntegrityViolationError so callers can alert on constraint trips, which in
// this schema usually means an ownership bug.
func translateError(table string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23514", "23505", "23503", "P0001":
			return &tenancy.IntegrityViolationError{
				Table:      table,
				Constraint: pqErr.Constraint,
				Err:        err,
			}
		}
	}
	return err
}
