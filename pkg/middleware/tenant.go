package middleware

import (
	"net/http"
	"strconv"

	"github.com/clinicore/clinicore/pkg/contextkeys"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// Request headers carrying the caller's tenant selection. Both must be
// present for the hint to count; a partial pair is a malformed request.
const (
	HeaderTenantType = "X-Tenant-Type"
	HeaderTenantID   = "X-Tenant-ID"
)

// TenantHint parses the optional tenant selection headers into a TenantRef
// and stores it on the request context. It does not validate membership;
// the tenant resolver does that against the caller's candidate set.
func TenantHint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantType := r.Header.Get(HeaderTenantType)
		tenantID := r.Header.Get(HeaderTenantID)

		if tenantType == "" && tenantID == "" {
			next.ServeHTTP(w, r)
			return
		}
		if tenantType == "" || tenantID == "" {
			badRequestResponse(w, "both "+HeaderTenantType+" and "+HeaderTenantID+" are required")
			return
		}

		parsedType := tenancy.TenantType(tenantType)
		if !parsedType.Valid() {
			badRequestResponse(w, "invalid tenant type")
			return
		}

		id, err := strconv.ParseInt(tenantID, 10, 64)
		if err != nil || id <= 0 {
			badRequestResponse(w, "invalid tenant id")
			return
		}

		hint := &tenancy.TenantRef{Type: parsedType, ID: id}
		ctx := contextkeys.WithTenantHint(r.Context(), hint)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantHint extracts the parsed tenant hint from a request.
// Returns nil when the caller did not select a tenant.
func GetTenantHint(r *http.Request) *tenancy.TenantRef {
	value := r.Context().Value(contextkeys.TenantHintKey)
	if value == nil {
		return nil
	}
	hint, ok := value.(*tenancy.TenantRef)
	if !ok {
		return nil
	}
	return hint
}

func badRequestResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
