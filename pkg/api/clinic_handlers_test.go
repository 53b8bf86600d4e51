package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/membership"
	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

type fakeMembershipService struct {
	clinic     *membership.Clinic
	member     *membership.Membership
	members    []*membership.Membership
	err        error
	acceptErr  error
	lastInvite *membership.InviteRequest
	lastRole   tenancy.Role

	deactivated []string
}

func (f *fakeMembershipService) CreateClinic(ctx context.Context, creatorID string, req *membership.CreateClinicRequest) (*membership.Clinic, error) {
	return f.clinic, f.err
}

func (f *fakeMembershipService) GetClinic(ctx context.Context, id int64) (*membership.Clinic, error) {
	return f.clinic, f.err
}

func (f *fakeMembershipService) Invite(ctx context.Context, clinicID int64, invitedBy string, req *membership.InviteRequest) (*membership.Membership, error) {
	f.lastInvite = req
	return f.member, f.err
}

func (f *fakeMembershipService) AcceptInvitation(ctx context.Context, token string, principalID string) error {
	return f.acceptErr
}

func (f *fakeMembershipService) Deactivate(ctx context.Context, clinicID int64, principalID string) error {
	f.deactivated = append(f.deactivated, principalID)
	return f.err
}

func (f *fakeMembershipService) UpdateRole(ctx context.Context, clinicID int64, principalID string, role tenancy.Role) error {
	f.lastRole = role
	return f.err
}

func (f *fakeMembershipService) ListMembers(ctx context.Context, clinicID int64) ([]*membership.Membership, error) {
	return f.members, f.err
}

func (f *fakeMembershipService) GetMembership(ctx context.Context, clinicID int64, principalID string) (*membership.Membership, error) {
	return f.member, f.err
}

func (f *fakeMembershipService) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	return 0, f.err
}

func (f *fakeMembershipService) ActiveClinics(ctx context.Context, principalID string) ([]tenancy.ClinicCandidate, error) {
	return nil, f.err
}

func (f *fakeMembershipService) TouchActivity(ctx context.Context, clinicID int64, principalID string) error {
	return nil
}

type fakeOverridesStore struct {
	overrides rbac.Overrides
	setErr    error
	last      rbac.Overrides
}

func (f *fakeOverridesStore) GetOverrides(ctx context.Context, clinicID int64) (rbac.Overrides, error) {
	return f.overrides, nil
}

func (f *fakeOverridesStore) SetOverrides(ctx context.Context, clinicID int64, overrides rbac.Overrides) error {
	f.last = overrides
	return f.setErr
}

func TestCreateClinicHandler(t *testing.T) {
	t.Run("creates clinic for any authenticated principal", func(t *testing.T) {
		recorder := &recordingAuditLogger{}
		service := &fakeMembershipService{clinic: &membership.Clinic{ID: 3, Name: "vida-clinic", IsActive: true}}
		core := newTestCore(&fakeResolver{}, &fakeEvaluator{allowed: true}, recorder)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		body := []byte(`{"name": "vida-clinic", "display_name": "Vida Clinic"}`)
		rr := serve(handlers, authedRequest("POST", "/clinics", "u1", body))

		require.Equal(t, http.StatusCreated, rr.Code)

		var clinic membership.Clinic
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &clinic))
		assert.Equal(t, int64(3), clinic.ID)

		assert.Equal(t, []audit.EventType{audit.EventTypeClinicCreated}, recorder.eventTypes())
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		core := newTestCore(&fakeResolver{}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{}, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("POST", "/clinics", "u1", []byte(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		core := newTestCore(&fakeResolver{}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{}, &fakeOverridesStore{})

		req := authedRequest("POST", "/clinics", "u1", []byte(`{"name": "x"}`))
		req = req.WithContext(context.Background())
		rr := serve(handlers, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestClinicTenantConfinement(t *testing.T) {
	t.Run("workspace context cannot read a clinic", func(t *testing.T) {
		core := newTestCore(&fakeResolver{tc: workspaceContext(2, "u1")}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{clinic: &membership.Clinic{ID: 5}}, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("GET", "/clinics/5", "u1", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("clinic context cannot read a different clinic", func(t *testing.T) {
		core := newTestCore(&fakeResolver{tc: clinicContext(4, "u1", tenancy.RoleOwner)}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{clinic: &membership.Clinic{ID: 5}}, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("GET", "/clinics/5", "u1", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("matching clinic context reads the clinic", func(t *testing.T) {
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleMember)}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{clinic: &membership.Clinic{ID: 5, Name: "vida"}}, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("GET", "/clinics/5", "u1", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestInviteHandler(t *testing.T) {
	t.Run("invites with the invite_user action", func(t *testing.T) {
		recorder := &recordingAuditLogger{}
		evaluator := &fakeEvaluator{allowed: true}
		service := &fakeMembershipService{member: &membership.Membership{ID: 1, ClinicID: 5, PrincipalID: "u2", Role: tenancy.RoleMember, State: membership.StateInvited}}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleAdmin)}, evaluator, recorder)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		body := []byte(`{"principal_id": "u2", "role": "member"}`)
		rr := serve(handlers, authedRequest("POST", "/clinics/5/members", "u1", body))

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, []rbac.Action{rbac.ActionInviteUser}, evaluator.actions)
		assert.Equal(t, "u2", service.lastInvite.PrincipalID)
		assert.Equal(t, []audit.EventType{audit.EventTypeMemberInvited}, recorder.eventTypes())
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleAdmin)}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{}, &fakeOverridesStore{})

		body := []byte(`{"principal_id": "u2", "role": "superuser"}`)
		rr := serve(handlers, authedRequest("POST", "/clinics/5/members", "u1", body))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAcceptInvitationHandler(t *testing.T) {
	t.Run("accepts with only the token", func(t *testing.T) {
		service := &fakeMembershipService{}
		core := newTestCore(&fakeResolver{err: tenancy.ErrNoTenantContext}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("POST", "/invitations/tok-abc/accept", "u2", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("expired invitation reads as not found", func(t *testing.T) {
		service := &fakeMembershipService{acceptErr: tenancy.ErrNotFound}
		core := newTestCore(&fakeResolver{}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("POST", "/invitations/tok-old/accept", "u2", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeactivateHandler(t *testing.T) {
	t.Run("self-leave needs no permission", func(t *testing.T) {
		evaluator := &fakeEvaluator{allowed: false}
		service := &fakeMembershipService{}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleMember)}, evaluator, nil)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("DELETE", "/clinics/5/members/u1", "u1", nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, evaluator.actions)
		assert.Equal(t, []string{"u1"}, service.deactivated)
	})

	t.Run("removing another member needs remove_user", func(t *testing.T) {
		evaluator := &fakeEvaluator{allowed: true}
		service := &fakeMembershipService{}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleAdmin)}, evaluator, nil)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("DELETE", "/clinics/5/members/u2", "u1", nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, []rbac.Action{rbac.ActionRemoveUser}, evaluator.actions)
	})

	t.Run("last owner maps to conflict", func(t *testing.T) {
		service := &fakeMembershipService{err: &membership.LastOwnerError{ClinicID: 5, PrincipalID: "u1"}}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleOwner)}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, service, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("DELETE", "/clinics/5/members/u1", "u1", nil))

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestOverridesHandlers(t *testing.T) {
	t.Run("set replaces the override map", func(t *testing.T) {
		recorder := &recordingAuditLogger{}
		store := &fakeOverridesStore{}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleOwner)}, &fakeEvaluator{allowed: true}, recorder)
		handlers := NewClinicHandlers(core, &fakeMembershipService{}, store)

		body := []byte(`{"member": {"view_finance": "deny"}}`)
		rr := serve(handlers, authedRequest("PUT", "/clinics/5/overrides", "u1", body))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, rbac.EffectDeny, store.last[tenancy.RoleMember][rbac.ActionViewFinance])
		assert.Equal(t, []audit.EventType{audit.EventTypeOverridesUpdated}, recorder.eventTypes())
	})

	t.Run("widening override maps to bad request", func(t *testing.T) {
		store := &fakeOverridesStore{setErr: &rbac.WideningOverrideError{Role: tenancy.RoleMember, Action: rbac.ActionManageOverrides}}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleOwner)}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{}, store)

		body := []byte(`{"member": {"manage_overrides": "allow"}}`)
		rr := serve(handlers, authedRequest("PUT", "/clinics/5/overrides", "u1", body))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("get requires manage_overrides", func(t *testing.T) {
		evaluator := &fakeEvaluator{allowed: false}
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleMember)}, evaluator, nil)
		handlers := NewClinicHandlers(core, &fakeMembershipService{}, &fakeOverridesStore{})

		rr := serve(handlers, authedRequest("GET", "/clinics/5/overrides", "u1", nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, []rbac.Action{rbac.ActionManageOverrides}, evaluator.actions)
	})
}
