package tenancy

import (
	"context"
	"fmt"
	"sort"
)

// MembershipDirectory lists the clinics a principal can act in. Implemented
// by the membership service; only active memberships are returned.
type MembershipDirectory interface {
	ActiveClinics(ctx context.Context, principalID string) ([]ClinicCandidate, error)
	TouchActivity(ctx context.Context, clinicID int64, principalID string) error
}

// WorkspaceRegistry resolves a principal's private workspace, if any.
type WorkspaceRegistry interface {
	WorkspaceIDForOwner(ctx context.Context, principalID string) (int64, bool, error)
}

// PreferenceStore persists the last tenant a principal resolved to, so that
// hint-less resolution stays deterministic across requests.
type PreferenceStore interface {
	LastUsedTenant(ctx context.Context, principalID string) (*TenantRef, error)
	SetLastUsedTenant(ctx context.Context, principalID string, ref TenantRef) error
}

// Resolver computes the single active tenant for a request. Resolution is a
// pure function of current membership/workspace state plus the optional hint;
// nothing is cached across requests.
type Resolver struct {
	directory  MembershipDirectory
	workspaces WorkspaceRegistry
	prefs      PreferenceStore
}

// NewResolver creates a tenant context resolver
func NewResolver(directory MembershipDirectory, workspaces WorkspaceRegistry, prefs PreferenceStore) *Resolver {
	return &Resolver{
		directory:  directory,
		workspaces: workspaces,
		prefs:      prefs,
	}
}

// Candidates returns the principal's full candidate set: the clinics of all
// active memberships plus the owned workspace, if one exists.
func (r *Resolver) Candidates(ctx context.Context, principalID string) (Candidates, error) {
	clinics, err := r.directory.ActiveClinics(ctx, principalID)
	if err != nil {
		return Candidates{}, fmt.Errorf("failed to list clinic candidates: %w", err)
	}

	candidates := Candidates{Clinics: clinics}

	workspaceID, ok, err := r.workspaces.WorkspaceIDForOwner(ctx, principalID)
	if err != nil {
		return Candidates{}, fmt.Errorf("failed to resolve workspace candidate: %w", err)
	}
	if ok {
		candidates.WorkspaceID = &workspaceID
	}

	return candidates, nil
}

// Resolve determines the active tenant for the request. If hint is non-nil it
// must be in the candidate set, otherwise ErrInvalidTenantSelection is
// returned before any resource is touched. Without a hint the persisted
// last-used tenant wins if still valid; a principal holding both clinic
// memberships and a workspace defaults to the most recently active clinic.
// A successful resolution is persisted as the new last-used tenant.
func (r *Resolver) Resolve(ctx context.Context, principalID string, hint *TenantRef) (*TenantContext, error) {
	candidates, err := r.Candidates(ctx, principalID)
	if err != nil {
		return nil, err
	}

	if candidates.Empty() {
		return nil, ErrNoTenantContext
	}

	var ref TenantRef
	switch {
	case hint != nil:
		if !candidates.Contains(*hint) {
			return nil, fmt.Errorf("%w: %s %d is not an eligible tenant", ErrInvalidTenantSelection, hint.Type, hint.ID)
		}
		ref = *hint
	default:
		ref = r.defaultTenant(ctx, principalID, candidates)
	}

	tctx := &TenantContext{
		Type:        ref.Type,
		TenantID:    ref.ID,
		PrincipalID: principalID,
	}
	if ref.Type == TenantTypeClinic {
		role, ok := candidates.clinicRole(ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: clinic %d is not an eligible tenant", ErrInvalidTenantSelection, ref.ID)
		}
		tctx.Role = role

		// Activity feeds the most-recently-active default; a write failure
		// must not fail resolution.
		_ = r.directory.TouchActivity(ctx, ref.ID, principalID)
	}

	if err := r.prefs.SetLastUsedTenant(ctx, principalID, ref); err != nil {
		return nil, fmt.Errorf("failed to persist tenant selection: %w", err)
	}

	return tctx, nil
}

// defaultTenant applies the hint-less selection policy against a non-empty
// candidate set.
func (r *Resolver) defaultTenant(ctx context.Context, principalID string, candidates Candidates) TenantRef {
	// Last-used tenant wins if it is still a valid candidate. A lookup
	// failure is treated as "no preference" rather than failing resolution.
	if last, err := r.prefs.LastUsedTenant(ctx, principalID); err == nil && last != nil {
		if candidates.Contains(*last) {
			return *last
		}
	}

	// A principal with both clinic memberships and a workspace defaults to
	// the most recently active clinic.
	if len(candidates.Clinics) > 0 {
		clinics := make([]ClinicCandidate, len(candidates.Clinics))
		copy(clinics, candidates.Clinics)
		sort.SliceStable(clinics, func(i, j int) bool {
			return clinics[i].LastActiveAt.After(clinics[j].LastActiveAt)
		})
		return TenantRef{Type: TenantTypeClinic, ID: clinics[0].ClinicID}
	}

	return TenantRef{Type: TenantTypeWorkspace, ID: *candidates.WorkspaceID}
}
