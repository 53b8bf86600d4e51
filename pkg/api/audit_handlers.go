package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/httputil"
	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// AuditSearcher queries stored audit events. Satisfied by audit.DBLogger.
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}

// AuditHandlers exposes the audit trail over HTTP. Results are always
// confined to the caller's active tenant; clinic access additionally
// requires the manage_settings action.
type AuditHandlers struct {
	core     *Core
	searcher AuditSearcher
}

// NewAuditHandlers creates audit trail handlers
func NewAuditHandlers(core *Core, searcher AuditSearcher) *AuditHandlers {
	return &AuditHandlers{core: core, searcher: searcher}
}

// RegisterRoutes registers audit routes on the router
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.Search).Methods("GET")
}

// Search returns audit events for the active tenant, filtered by the query
// parameters start, end, principal_id, event_types, severity, resource,
// limit, and offset. The tenant filter is taken from the resolved context,
// never from the request.
func (h *AuditHandlers) Search(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.core.resolveTenant(w, r)
	if !ok {
		return
	}
	if tc.Type == tenancy.TenantTypeClinic && !h.core.authorize(w, r, tc, rbac.ActionManageSettings) {
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	tenantID := tc.TenantID
	filter.TenantType = tc.Type
	filter.TenantID = &tenantID

	events, err := h.searcher.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func filterFromQuery(r *http.Request) (audit.SearchFilter, error) {
	var filter audit.SearchFilter

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.StartTime = &t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.EndTime = &t
	}

	filter.PrincipalID = r.URL.Query().Get("principal_id")
	filter.Severity = audit.Severity(r.URL.Query().Get("severity"))
	filter.Resource = r.URL.Query().Get("resource")

	if raw := r.URL.Query().Get("event_types"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			filter.EventTypes = append(filter.EventTypes, audit.EventType(strings.TrimSpace(name)))
		}
	}

	filter.Limit, filter.Offset = httputil.ParsePagination(r, 100, 1000)
	return filter, nil
}
