package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUsable(t *testing.T) {
	t.Parallel()
	now := time.Now()

	t.Run("live token", func(t *testing.T) {
		require.True(t, Usable(AccessToken{ExpiresAt: now.Add(time.Minute)}, now))
	})

	t.Run("revoked token", func(t *testing.T) {
		require.False(t, Usable(RefreshToken{ExpiresAt: now.Add(time.Minute), Revoked: true}, now))
	})

	t.Run("expired token", func(t *testing.T) {
		require.False(t, Usable(AuthorizationCode{ExpiresAt: now.Add(-time.Minute)}, now))
	})

	t.Run("expiry instant itself is still live", func(t *testing.T) {
		require.True(t, Usable(AccessToken{ExpiresAt: now}, now))
	})
}

func TestTokenScopes(t *testing.T) {
	t.Parallel()

	tokens := []HasScopes{
		AccessToken{Scopes: []string{"a", "b"}},
		RefreshToken{Scopes: []string{"a", "b"}},
		AuthorizationCode{Scopes: []string{"a", "b"}},
	}
	for _, tok := range tokens {
		require.Equal(t, []string{"a", "b"}, tok.TokenScopes())
	}
}
