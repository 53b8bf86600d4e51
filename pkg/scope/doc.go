// Package scope is the single write path and read path for governed record
// collections.
//
// # Overview
//
// A governed collection is a table owned row-by-row by exactly one tenant,
// either a clinic or a personal workspace. The Scoper applies the tenant
// predicate to every statement it issues: reads filter on the caller's
// ownership column, creates stamp it, updates and deletes pin it in the
// WHERE clause. Rows belonging to another tenant look exactly like rows
// that do not exist, so nothing above this package can leak cross-tenant
// existence.
//
// The Registry whitelists which tables and columns the Scoper may touch.
// Descriptors are registered once at startup; an unregistered collection
// name is an error, not a passthrough.
//
// # Usage Example
//
//	registry := scope.NewRegistry()
//	registry.Register(scope.Collection{
//		Table:        "patients",
//		Columns:      []string{"full_name", "date_of_birth", "contact"},
//		ViewAction:   rbac.ActionViewPatients,
//		ManageAction: rbac.ActionManagePatients,
//	})
//
//	scoper := scope.NewScoper(db, registry)
//	record, err := scoper.Create(ctx, tenantCtx, "patients", map[string]any{
//		"full_name": "Ada Sinclair",
//	})
package scope
