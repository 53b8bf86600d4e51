package identity

import (
	"context"
	"fmt"
)

// Principal is an authenticated caller. The ID is the stable subject
// identifier issued by the identity provider; tenancy is resolved separately
// and never inferred from these fields.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ErrInvalidToken is returned when a credential cannot be verified
var ErrInvalidToken = fmt.Errorf("invalid token")

// Verifier turns a bearer credential into a Principal
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}
