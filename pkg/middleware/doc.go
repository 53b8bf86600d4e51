// Package middleware provides the HTTP middleware chain: bearer-token
// authentication, tenant selection header parsing and rate limiting.
//
// Authentication resolves the caller into an identity.Principal and stores
// it on the request context. TenantHint parses the X-Tenant-Type and
// X-Tenant-ID headers into a tenancy.TenantRef without validating it; the
// tenant resolver checks the hint against the caller's candidate set later,
// so an invalid selection is rejected where the membership data lives.
package middleware
