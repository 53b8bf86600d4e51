package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier(t *testing.T) {
	verifier := NewStaticVerifier(map[string]Principal{
		"token-alice": {ID: "principal-1", Email: "alice@example.com"},
	})

	t.Run("known token", func(t *testing.T) {
		principal, err := verifier.Verify(context.Background(), "token-alice")
		require.NoError(t, err)
		assert.Equal(t, "principal-1", principal.ID)
		assert.Equal(t, "alice@example.com", principal.Email)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := verifier.Verify(context.Background(), "token-mallory")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("added token", func(t *testing.T) {
		verifier.Add("token-bob", Principal{ID: "principal-2"})

		principal, err := verifier.Verify(context.Background(), "token-bob")
		require.NoError(t, err)
		assert.Equal(t, "principal-2", principal.ID)
	})
}

func TestOIDCConfigValidate(t *testing.T) {
	valid := OIDCConfig{
		IssuerURL:    "https://auth.example.com",
		ClientID:     "clinicore",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/callback",
		Scopes:       []string{"openid", "email", "profile"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*OIDCConfig)
		errMsg string
	}{
		{"missing issuer", func(c *OIDCConfig) { c.IssuerURL = "" }, "issuer_url is required"},
		{"missing client id", func(c *OIDCConfig) { c.ClientID = "" }, "client_id is required"},
		{"missing client secret", func(c *OIDCConfig) { c.ClientSecret = "" }, "client_secret is required"},
		{"missing redirect", func(c *OIDCConfig) { c.RedirectURL = "" }, "redirect_url is required"},
		{"missing openid scope", func(c *OIDCConfig) { c.Scopes = []string{"email"} }, "'openid' scope is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
