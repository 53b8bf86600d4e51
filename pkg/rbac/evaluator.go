package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/membership"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// MembershipLookup resolves the current membership row for a principal in a
// clinic. Satisfied by the membership service.
type MembershipLookup interface {
	GetMembership(ctx context.Context, clinicID int64, principalID string) (*membership.Membership, error)
}

// Evaluator refines tenant-scoped access into per-action allow/deny
// decisions. Clinic decisions come from the static default matrix narrowed
// by the clinic's stored overrides; workspace tenants have no roles at all.
type Evaluator struct {
	memberships MembershipLookup
	workspaces  tenancy.WorkspaceRegistry
	overrides   *Store
}

// NewEvaluator creates a permission evaluator
func NewEvaluator(memberships MembershipLookup, workspaces tenancy.WorkspaceRegistry, overrides *Store) *Evaluator {
	return &Evaluator{
		memberships: memberships,
		workspaces:  workspaces,
		overrides:   overrides,
	}
}

// Evaluate decides whether the context's principal may perform action in the
// context's tenant. Decisions are computed fresh on every call from durable
// state; nothing is cached, so a revocation holds on the next request.
func (e *Evaluator) Evaluate(ctx context.Context, tctx *tenancy.TenantContext, action Action) (*Decision, error) {
	if !action.Known() {
		return nil, fmt.Errorf("unknown action %q", action)
	}

	switch tctx.Type {
	case tenancy.TenantTypeWorkspace:
		return e.evaluateWorkspace(ctx, tctx)
	case tenancy.TenantTypeClinic:
		return e.evaluateClinic(ctx, tctx, action)
	default:
		return nil, fmt.Errorf("unknown tenant type %q", tctx.Type)
	}
}

// evaluateWorkspace short-circuits to allow when the acting principal owns
// the workspace. The sole owner is implicitly allowed every action; anyone
// else gets an unconditional deny.
func (e *Evaluator) evaluateWorkspace(ctx context.Context, tctx *tenancy.TenantContext) (*Decision, error) {
	id, ok, err := e.workspaces.WorkspaceIDForOwner(ctx, tctx.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify workspace owner: %w", err)
	}
	if !ok || id != tctx.TenantID {
		return &Decision{
			Allowed:   false,
			Reason:    "principal does not own this workspace",
			CheckedAt: time.Now(),
		}, nil
	}

	return &Decision{
		Allowed:   true,
		Reason:    "workspace owner",
		CheckedAt: time.Now(),
	}, nil
}

func (e *Evaluator) evaluateClinic(ctx context.Context, tctx *tenancy.TenantContext, action Action) (*Decision, error) {
	m, err := e.memberships.GetMembership(ctx, tctx.TenantID, tctx.PrincipalID)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return &Decision{
				Allowed:   false,
				Reason:    "no membership in clinic",
				CheckedAt: time.Now(),
			}, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	// A deactivated (or still-invited) membership denies everything, no
	// matter what role it carried.
	if m.State != membership.StateActive {
		return &Decision{
			Allowed:   false,
			Reason:    fmt.Sprintf("membership is %s", m.State),
			CheckedAt: time.Now(),
		}, nil
	}

	if !DefaultAllows(m.Role, action) {
		return &Decision{
			Allowed:   false,
			Reason:    fmt.Sprintf("role %s does not grant %s", m.Role, action),
			CheckedAt: time.Now(),
		}, nil
	}

	overrides, err := e.overrides.GetOverrides(ctx, tctx.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load clinic overrides: %w", err)
	}
	if overrides.Denies(m.Role, action) {
		return &Decision{
			Allowed:   false,
			Reason:    fmt.Sprintf("clinic override denies %s for role %s", action, m.Role),
			CheckedAt: time.Now(),
		}, nil
	}

	return &Decision{
		Allowed:   true,
		Reason:    fmt.Sprintf("granted by role %s", m.Role),
		CheckedAt: time.Now(),
	}, nil
}
