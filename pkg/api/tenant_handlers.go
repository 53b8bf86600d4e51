package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/httputil"
)

// TenantHandlers exposes tenant resolution over HTTP: the currently active
// tenant context and the list of tenants a principal may act as.
type TenantHandlers struct {
	core *Core
}

// NewTenantHandlers creates tenant resolution handlers
func NewTenantHandlers(core *Core) *TenantHandlers {
	return &TenantHandlers{core: core}
}

// RegisterRoutes registers tenant routes on the router
func (h *TenantHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tenant", h.GetTenantContext).Methods("GET")
	router.HandleFunc("/tenant/candidates", h.ListCandidates).Methods("GET")
}

// GetTenantContext resolves and returns the active tenant for the caller,
// honoring the X-Tenant-Type and X-Tenant-ID header hint.
func (h *TenantHandlers) GetTenantContext(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.core.resolveTenant(w, r)
	if !ok {
		return
	}
	h.core.logEvent(r.Context(), audit.TenantResolved(tc))
	httputil.WriteJSON(w, http.StatusOK, tc)
}

// ListCandidates returns every tenant the caller is eligible to act as:
// active clinic memberships plus the personal workspace, if any.
func (h *TenantHandlers) ListCandidates(w http.ResponseWriter, r *http.Request) {
	principalID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	candidates, err := h.core.resolver.Candidates(r.Context(), principalID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, candidates)
}
