// Package rbac evaluates per-action permissions inside clinic tenants.
//
// # Overview
//
// Evaluation is table-driven: a static role to allowed-actions default
// matrix (member < admin < owner, strictly increasing privilege) merged at
// evaluation time with a per-clinic typed override map. Overrides can only
// narrow a role's defaults; an attempt to widen is rejected when the
// override is written, so the merge at read time is a plain subtraction.
//
// Workspace tenants have no roles: the owning principal is implicitly
// allowed every action and everyone else is denied.
//
// # Usage Example
//
//	evaluator := rbac.NewEvaluator(members, workspaces, rbac.NewStore(db))
//	decision, err := evaluator.Evaluate(ctx, tctx, rbac.ActionInviteUser)
//	if err != nil {
//		return err
//	}
//	if !decision.Allowed {
//		// Surface as not-found, never as forbidden-with-reason.
//	}
//
// The full matrix is enumerable: AllActions x the three roles, which keeps
// the permission surface exhaustively testable.
package rbac
