package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/httputil"
	"github.com/clinicore/clinicore/pkg/scope"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// RecordScoper performs tenant-scoped CRUD on governed collections.
// Satisfied by scope.Scoper.
type RecordScoper interface {
	Create(ctx context.Context, tc tenancy.TenantContext, collection string, fields map[string]any) (*scope.Record, error)
	Get(ctx context.Context, tc tenancy.TenantContext, collection string, id int64) (*scope.Record, error)
	List(ctx context.Context, tc tenancy.TenantContext, collection string, limit, offset int) ([]*scope.Record, int64, error)
	Update(ctx context.Context, tc tenancy.TenantContext, collection string, id int64, fields map[string]any) (*scope.Record, error)
	Delete(ctx context.Context, tc tenancy.TenantContext, collection string, id int64) error
}

// RecordHandlers exposes governed record CRUD over HTTP. Every operation
// resolves the caller's tenant, checks the collection's view or manage
// action, and goes through the scoper so reads and writes never leave the
// active tenant.
type RecordHandlers struct {
	core     *Core
	scoper   RecordScoper
	registry *scope.Registry
}

// NewRecordHandlers creates governed record handlers
func NewRecordHandlers(core *Core, scoper RecordScoper, registry *scope.Registry) *RecordHandlers {
	return &RecordHandlers{core: core, scoper: scoper, registry: registry}
}

// RegisterRoutes registers record routes on the router
func (h *RecordHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/records/{collection}", h.List).Methods("GET")
	router.HandleFunc("/records/{collection}", h.Create).Methods("POST")
	router.HandleFunc("/records/{collection}/{id}", h.Get).Methods("GET")
	router.HandleFunc("/records/{collection}/{id}", h.Update).Methods("PUT")
	router.HandleFunc("/records/{collection}/{id}", h.Delete).Methods("DELETE")
}

// listResponse is the paginated envelope for record listings
type listResponse struct {
	Records []*scope.Record `json:"records"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// List returns a page of records in the collection, scoped to the active
// tenant.
func (h *RecordHandlers) List(w http.ResponseWriter, r *http.Request) {
	tc, col, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, col.ViewAction) {
		return
	}

	limit, offset := httputil.ParsePagination(r, 50, 200)
	collection := mux.Vars(r)["collection"]

	records, total, err := h.scoper.List(r.Context(), tc, collection, limit, offset)
	if err != nil {
		h.writeScoperError(w, r, tc, collection, "list", err)
		return
	}

	h.countOperation(collection, "list", "success")
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// Get returns a single record by id. Records outside the active tenant read
// as not found.
func (h *RecordHandlers) Get(w http.ResponseWriter, r *http.Request) {
	tc, col, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, col.ViewAction) {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	collection := mux.Vars(r)["collection"]

	record, err := h.scoper.Get(r.Context(), tc, collection, id)
	if err != nil {
		h.writeScoperError(w, r, tc, collection, "get", err)
		return
	}

	h.countOperation(collection, "get", "success")
	httputil.WriteJSON(w, http.StatusOK, record)
}

// Create inserts a record owned by the active tenant
func (h *RecordHandlers) Create(w http.ResponseWriter, r *http.Request) {
	tc, col, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, col.ManageAction) {
		return
	}

	var fields map[string]any
	if !httputil.ParseJSONOrError(w, r, &fields) {
		return
	}
	collection := mux.Vars(r)["collection"]

	record, err := h.scoper.Create(r.Context(), tc, collection, fields)
	if err != nil {
		h.writeScoperError(w, r, tc, collection, "create", err)
		return
	}

	h.core.logEvent(r.Context(), audit.RecordMutation(audit.EventTypeRecordCreated, tc, collection, strconv.FormatInt(record.ID, 10)))
	h.countOperation(collection, "create", "success")
	httputil.WriteJSON(w, http.StatusCreated, record)
}

// Update modifies a record's fields. Ownership columns are immutable; an
// attempt to change them is rejected before the write.
func (h *RecordHandlers) Update(w http.ResponseWriter, r *http.Request) {
	tc, col, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, col.ManageAction) {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var fields map[string]any
	if !httputil.ParseJSONOrError(w, r, &fields) {
		return
	}
	collection := mux.Vars(r)["collection"]

	record, err := h.scoper.Update(r.Context(), tc, collection, id, fields)
	if err != nil {
		h.writeScoperError(w, r, tc, collection, "update", err)
		return
	}

	h.core.logEvent(r.Context(), audit.RecordMutation(audit.EventTypeRecordUpdated, tc, collection, strconv.FormatInt(id, 10)))
	h.countOperation(collection, "update", "success")
	httputil.WriteJSON(w, http.StatusOK, record)
}

// Delete removes a record from the active tenant
func (h *RecordHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	tc, col, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if !h.core.authorize(w, r, tc, col.ManageAction) {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	collection := mux.Vars(r)["collection"]

	if err := h.scoper.Delete(r.Context(), tc, collection, id); err != nil {
		h.writeScoperError(w, r, tc, collection, "delete", err)
		return
	}

	h.core.logEvent(r.Context(), audit.RecordMutation(audit.EventTypeRecordDeleted, tc, collection, strconv.FormatInt(id, 10)))
	h.countOperation(collection, "delete", "success")
	httputil.WriteNoContent(w)
}

// prepare resolves the tenant and looks up the collection. Unknown
// collections read as not found.
func (h *RecordHandlers) prepare(w http.ResponseWriter, r *http.Request) (tenancy.TenantContext, scope.Collection, bool) {
	tc, ok := h.core.resolveTenant(w, r)
	if !ok {
		return tenancy.TenantContext{}, scope.Collection{}, false
	}

	collection := mux.Vars(r)["collection"]
	col, err := h.registry.Get(collection)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return tenancy.TenantContext{}, scope.Collection{}, false
	}
	return tc, col, true
}

// writeScoperError maps a scoper failure to a response, auditing and
// counting integrity trips on the way through.
func (h *RecordHandlers) writeScoperError(w http.ResponseWriter, r *http.Request, tc tenancy.TenantContext, collection, operation string, err error) {
	if tenancy.IsIntegrityViolation(err) {
		var iv *tenancy.IntegrityViolationError
		constraint := ""
		if errors.As(err, &iv) {
			constraint = iv.Constraint
		}
		h.core.logEvent(r.Context(), audit.IntegrityViolation(tc, collection, constraint))
		if h.core.metrics != nil {
			h.core.metrics.IntegrityViolationsTotal.WithLabelValues(collection).Inc()
		}
	}
	h.countOperation(collection, operation, "error")
	httputil.WriteDomainError(w, err)
}

func (h *RecordHandlers) countOperation(collection, operation, status string) {
	if h.core.metrics != nil {
		h.core.metrics.RecordOperationsTotal.WithLabelValues(collection, operation, status).Inc()
	}
}
