package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/httputil"
	"github.com/clinicore/clinicore/pkg/membership"
	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// OverridesStore reads and writes per-clinic permission overrides. Satisfied
// by rbac.Store.
type OverridesStore interface {
	GetOverrides(ctx context.Context, clinicID int64) (rbac.Overrides, error)
	SetOverrides(ctx context.Context, clinicID int64, overrides rbac.Overrides) error
}

// ClinicHandlers exposes clinic management and membership lifecycle over
// HTTP: create, invite, accept, deactivate, role changes, and permission
// overrides.
type ClinicHandlers struct {
	core      *Core
	members   membership.Service
	overrides OverridesStore
}

// NewClinicHandlers creates clinic and membership handlers
func NewClinicHandlers(core *Core, members membership.Service, overrides OverridesStore) *ClinicHandlers {
	return &ClinicHandlers{core: core, members: members, overrides: overrides}
}

// RegisterRoutes registers clinic routes on the router
func (h *ClinicHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/clinics", h.CreateClinic).Methods("POST")
	router.HandleFunc("/clinics/{id}", h.GetClinic).Methods("GET")
	router.HandleFunc("/clinics/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/clinics/{id}/members", h.Invite).Methods("POST")
	router.HandleFunc("/clinics/{id}/members/{principal_id}", h.Deactivate).Methods("DELETE")
	router.HandleFunc("/clinics/{id}/members/{principal_id}/role", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/clinics/{id}/overrides", h.GetOverrides).Methods("GET")
	router.HandleFunc("/clinics/{id}/overrides", h.SetOverrides).Methods("PUT")
	router.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods("POST")
}

// CreateClinic creates a clinic with the caller as its initial owner. Any
// authenticated principal may create a clinic; no tenant context is needed.
func (h *ClinicHandlers) CreateClinic(w http.ResponseWriter, r *http.Request) {
	principalID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req membership.CreateClinicRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	clinic, err := h.members.CreateClinic(r.Context(), principalID, &req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.core.logEvent(r.Context(), &audit.Event{
		EventType:   audit.EventTypeClinicCreated,
		Severity:    audit.SeverityInfo,
		PrincipalID: principalID,
		TenantType:  tenancy.TenantTypeClinic,
		TenantID:    &clinic.ID,
		Resource:    "clinic",
	})
	httputil.WriteJSON(w, http.StatusCreated, clinic)
}

// GetClinic returns clinic details. The caller must have an active clinic
// context for that clinic.
func (h *ClinicHandlers) GetClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.clinicContext(w, r, clinicID); !ok {
		return
	}

	clinic, err := h.members.GetClinic(r.Context(), clinicID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, clinic)
}

// ListMembers returns every membership in the clinic, active and inactive
func (h *ClinicHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.clinicContext(w, r, clinicID); !ok {
		return
	}

	members, err := h.members.ListMembers(r.Context(), clinicID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

// Invite creates an invited membership for a principal
func (h *ClinicHandlers) Invite(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	tc, ok := h.clinicContext(w, r, clinicID)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, rbac.ActionInviteUser) {
		return
	}

	var req membership.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PrincipalID, "principal_id") {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "unknown role: "+string(req.Role))
		return
	}

	m, err := h.members.Invite(r.Context(), clinicID, tc.PrincipalID, &req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.core.logEvent(r.Context(), audit.MembershipChange(audit.EventTypeMemberInvited, clinicID, tc.PrincipalID, req.PrincipalID))
	h.countTransition("invited")
	httputil.WriteJSON(w, http.StatusCreated, m)
}

// AcceptInvitation activates the caller's invited membership by token. The
// token itself proves the invitation; no tenant context exists yet.
func (h *ClinicHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	principalID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	if err := h.members.AcceptInvitation(r.Context(), token, principalID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.countTransition("activated")
	httputil.WriteSuccess(w, map[string]string{"message": "invitation accepted"})
}

// Deactivate ends a membership. Members may leave on their own; removing
// someone else requires the remove_user action. The last active owner can
// never be deactivated.
func (h *ClinicHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subjectID, ok := httputil.ParsePathStringOrError(w, r, "principal_id")
	if !ok {
		return
	}
	tc, ok := h.clinicContext(w, r, clinicID)
	if !ok {
		return
	}
	if subjectID != tc.PrincipalID && !h.core.authorize(w, r, tc, rbac.ActionRemoveUser) {
		return
	}

	if err := h.members.Deactivate(r.Context(), clinicID, subjectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.core.logEvent(r.Context(), audit.MembershipChange(audit.EventTypeMemberDeactivated, clinicID, tc.PrincipalID, subjectID))
	h.countTransition("deactivated")
	httputil.WriteNoContent(w)
}

// UpdateRole changes a member's role
func (h *ClinicHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subjectID, ok := httputil.ParsePathStringOrError(w, r, "principal_id")
	if !ok {
		return
	}
	tc, ok := h.clinicContext(w, r, clinicID)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, rbac.ActionUpdateRole) {
		return
	}

	var req struct {
		Role tenancy.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "unknown role: "+string(req.Role))
		return
	}

	if err := h.members.UpdateRole(r.Context(), clinicID, subjectID, req.Role); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.core.logEvent(r.Context(), audit.MembershipChange(audit.EventTypeMemberRoleChanged, clinicID, tc.PrincipalID, subjectID))
	h.countTransition("role_changed")
	httputil.WriteSuccess(w, map[string]string{"message": "role updated"})
}

// GetOverrides returns the clinic's permission override map
func (h *ClinicHandlers) GetOverrides(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	tc, ok := h.clinicContext(w, r, clinicID)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, rbac.ActionManageOverrides) {
		return
	}

	overrides, err := h.overrides.GetOverrides(r.Context(), clinicID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overrides)
}

// SetOverrides replaces the clinic's permission override map. Overrides may
// only narrow role defaults; widening attempts are rejected.
func (h *ClinicHandlers) SetOverrides(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	tc, ok := h.clinicContext(w, r, clinicID)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, rbac.ActionManageOverrides) {
		return
	}

	var overrides rbac.Overrides
	if !httputil.ParseJSONOrError(w, r, &overrides) {
		return
	}

	if err := h.overrides.SetOverrides(r.Context(), clinicID, overrides); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.core.logEvent(r.Context(), &audit.Event{
		EventType:   audit.EventTypeOverridesUpdated,
		Severity:    audit.SeverityInfo,
		PrincipalID: tc.PrincipalID,
		TenantType:  tenancy.TenantTypeClinic,
		TenantID:    &clinicID,
		Resource:    "overrides",
	})
	httputil.WriteSuccess(w, map[string]string{"message": "overrides updated"})
}

// clinicContext resolves the caller's tenant and checks that it is a clinic
// context for the clinic in the path. A mismatch reads as not found so the
// response never reveals whether the clinic exists.
func (h *ClinicHandlers) clinicContext(w http.ResponseWriter, r *http.Request, clinicID int64) (tenancy.TenantContext, bool) {
	tc, ok := h.core.resolveTenant(w, r)
	if !ok {
		return tenancy.TenantContext{}, false
	}
	if tc.Type != tenancy.TenantTypeClinic || tc.TenantID != clinicID {
		httputil.WriteNotFoundError(w, "clinic")
		return tenancy.TenantContext{}, false
	}
	return tc, true
}

func (h *ClinicHandlers) countTransition(transition string) {
	if h.core.metrics != nil {
		h.core.metrics.MembershipTransitionsTotal.WithLabelValues(transition).Inc()
	}
}
