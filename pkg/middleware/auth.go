package middleware

import (
	"net/http"
	"strings"

	"github.com/clinicore/clinicore/pkg/contextkeys"
	"github.com/clinicore/clinicore/pkg/identity"
)

// Authentication verifies bearer credentials and attaches the resulting
// principal to the request context.
type Authentication struct {
	verifier identity.Verifier
	optional bool // If true, allow requests without credentials
}

// NewAuthentication creates authentication middleware
func NewAuthentication(verifier identity.Verifier, optional bool) *Authentication {
	return &Authentication{
		verifier: verifier,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *Authentication) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		principal, err := m.verifier.Verify(r.Context(), parts[1])
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated principal from a request.
// Returns nil when the request is unauthenticated.
func GetPrincipal(r *http.Request) *identity.Principal {
	value := r.Context().Value(contextkeys.PrincipalKey)
	if value == nil {
		return nil
	}
	principal, ok := value.(*identity.Principal)
	if !ok {
		return nil
	}
	return principal
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
