package identity

import (
	"context"
	"sync"
)

// StaticVerifier maps fixed opaque tokens to principals. It backs local
// development and tests, where spinning up an OIDC provider is not worth it.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]Principal
}

// NewStaticVerifier creates a verifier from a token to principal map
func NewStaticVerifier(tokens map[string]Principal) *StaticVerifier {
	copied := make(map[string]Principal, len(tokens))
	for token, principal := range tokens {
		copied[token] = principal
	}
	return &StaticVerifier{tokens: copied}
}

// Verify looks the token up in the static map
func (v *StaticVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	principal, ok := v.tokens[rawToken]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &principal, nil
}

// Add registers a token at runtime
func (v *StaticVerifier) Add(token string, principal Principal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = principal
}
