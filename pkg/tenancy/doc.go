// Package tenancy defines the tenant model and resolves the active tenant
// for every request in the Clinicore platform.
//
// # Overview
//
// Every governed record in the platform belongs to exactly one tenant:
// either a shared Clinic (multi-professional, role-based) or a private
// Workspace (single owning professional). This package owns the TenantContext
// value that all scoped storage access and permission evaluation consume, the
// error taxonomy for tenancy decisions, and the Resolver that computes a
// context from the principal's current memberships and workspace.
//
// # Resolution
//
// The candidate set for a principal is the union of their active clinic
// memberships and their owned workspace. An explicit hint outside that set is
// rejected with ErrInvalidTenantSelection before any resource is touched.
// Without a hint, the persisted last-used tenant wins when still valid;
// otherwise a principal holding both tenancy models defaults to the most
// recently active clinic. An empty candidate set yields ErrNoTenantContext.
//
// # Usage Example
//
//	resolver := tenancy.NewResolver(directory, workspaces, prefs)
//	tctx, err := resolver.Resolve(ctx, principalID, nil)
//	if err != nil {
//		return err
//	}
//	rows, err := scoper.Read(ctx, tctx, patients, scope.Filter{})
//
// TenantContext is always passed explicitly as an argument. It is never
// stored in process-global state, so a revoked membership stops granting
// access on the principal's very next request.
//
// # Related Packages
//
//   - pkg/membership: clinic membership directory (candidate source)
//   - pkg/workspace: private workspace registry (candidate source)
//   - pkg/scope: tenant-scoped storage access
//   - pkg/rbac: role and permission evaluation inside clinics
package tenancy
