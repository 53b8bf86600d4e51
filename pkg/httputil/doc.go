// Package httputil provides HTTP handler utilities shared across the API surface.
//
// # Overview
//
// This package centralizes JSON response encoding, request parsing, and the
// mapping from service errors to HTTP status codes. Handlers return domain
// errors from the service layer and pass them to WriteDomainError, which
// keeps the status mapping in one place.
//
// # Usage Example
//
//	func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
//		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//		if !ok {
//			return
//		}
//
//		record, err := h.scoper.Get(r.Context(), tc, "patients", id)
//		if err != nil {
//			httputil.WriteDomainError(w, err)
//			return
//		}
//
//		httputil.WriteSuccess(w, record)
//	}
//
// # Related Packages
//
//   - pkg/api: HTTP handlers built on these helpers
//   - pkg/middleware: Authentication and rate limiting
package httputil
