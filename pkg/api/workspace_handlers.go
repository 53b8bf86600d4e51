package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/httputil"
	"github.com/clinicore/clinicore/pkg/tenancy"
	"github.com/clinicore/clinicore/pkg/workspace"
)

// WorkspaceHandlers exposes personal workspace management over HTTP
type WorkspaceHandlers struct {
	core       *Core
	workspaces workspace.Service
}

// NewWorkspaceHandlers creates workspace handlers
func NewWorkspaceHandlers(core *Core, workspaces workspace.Service) *WorkspaceHandlers {
	return &WorkspaceHandlers{core: core, workspaces: workspaces}
}

// RegisterRoutes registers workspace routes on the router
func (h *WorkspaceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces", h.Create).Methods("POST")
	router.HandleFunc("/workspaces/mine", h.GetMine).Methods("GET")
}

// Create provisions the caller's personal workspace. Each principal owns at
// most one workspace; a second create returns a conflict.
func (h *WorkspaceHandlers) Create(w http.ResponseWriter, r *http.Request) {
	principalID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req workspace.CreateWorkspaceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, err := h.workspaces.Create(r.Context(), principalID, &req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.core.logEvent(r.Context(), &audit.Event{
		EventType:   audit.EventTypeWorkspaceCreated,
		Severity:    audit.SeverityInfo,
		PrincipalID: principalID,
		TenantType:  tenancy.TenantTypeWorkspace,
		TenantID:    &ws.ID,
		Resource:    "workspace",
	})
	httputil.WriteJSON(w, http.StatusCreated, ws)
}

// GetMine returns the caller's personal workspace
func (h *WorkspaceHandlers) GetMine(w http.ResponseWriter, r *http.Request) {
	principalID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	ws, err := h.workspaces.GetByOwner(r.Context(), principalID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ws)
}
