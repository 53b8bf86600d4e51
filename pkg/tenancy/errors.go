package tenancy

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tenancy decision taxonomy. None of these are
// transient: they are authorization and consistency decisions, never retried.
var (
	// ErrNoTenantContext means the principal has zero eligible tenants
	// (onboarding is incomplete).
	ErrNoTenantContext = errors.New("no tenant context: principal has no eligible tenant")

	// ErrInvalidTenantSelection means an explicit tenant hint was supplied
	// but is not in the principal's candidate set.
	ErrInvalidTenantSelection = errors.New("invalid tenant selection")

	// ErrOwnershipMismatch means a create payload supplied owner fields that
	// disagree with the resolved tenant context.
	ErrOwnershipMismatch = errors.New("ownership mismatch")

	// ErrNotFound covers both a truly absent row and a row owned by a
	// different tenant. The two cases are indistinguishable so that
	// cross-tenant existence is never revealed.
	ErrNotFound = errors.New("not found")
)

// IntegrityViolationError is returned when the storage-level ownership
// constraint rejects a write. The enclosing transaction is rolled back, so a
// dual-owned or unowned row is never observable. Reaching this error signals
// an application bug upstream of storage, not user error.
type IntegrityViolationError struct {
	Table      string
	Constraint string
	Err        error
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("ownership integrity violation on %s (%s)", e.Table, e.Constraint)
}

func (e *IntegrityViolationError) Unwrap() error {
	return e.Err
}

// IsIntegrityViolation checks if an error is an ownership integrity violation
func IsIntegrityViolation(err error) bool {
	var iv *IntegrityViolationError
	return errors.As(err, &iv)
}
