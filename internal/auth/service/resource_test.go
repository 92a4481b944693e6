package service

import (
	"context"
	"testing"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func issuePasswordPair(t *testing.T, env *testEnv) *domain.TokenPair {
	t.Helper()
	pair, err := env.server.Exchange(context.Background(), TokenRequest{
		GrantType:    domain.GrantPassword,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Username:     testUsername,
		Password:     testPassword,
		Scopes:       []string{"test"},
	})
	require.NoError(t, err)
	return pair
}

func TestResourceValidator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("accepts a live token", func(t *testing.T) {
		pair := issuePasswordPair(t, env)

		auth, err := env.resource.ValidateAccessToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, env.userID, auth.Subject)
		require.Equal(t, testClientID, auth.ClientID)
		require.Equal(t, []string{"test"}, auth.Scopes)
		require.NotEmpty(t, auth.TokenID)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := env.resource.ValidateAccessToken(ctx, "not-a-jwt")
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("rejects a revoked token before its exp", func(t *testing.T) {
		pair := issuePasswordPair(t, env)

		auth, err := env.resource.ValidateAccessToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.NoError(t, env.store.AccessTokens().RevokeAccessToken(ctx, auth.TokenID))

		_, err = env.resource.ValidateAccessToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("introspect reports inactive instead of erroring", func(t *testing.T) {
		_, active := env.resource.Introspect(ctx, "junk")
		require.False(t, active)

		pair := issuePasswordPair(t, env)
		auth, active := env.resource.Introspect(ctx, pair.AccessToken)
		require.True(t, active)
		require.Equal(t, env.userID, auth.Subject)
	})
}

func TestRevocationService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("revoking a refresh token kills its access token too", func(t *testing.T) {
		pair := issuePasswordPair(t, env)

		require.NoError(t, env.revocation.Revoke(ctx, testClientID, pair.RefreshToken, "refresh_token"))

		_, err := env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantRefreshToken,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			RefreshToken: pair.RefreshToken,
		})
		require.ErrorIs(t, err, ErrInvalidRefresh)

		_, err = env.resource.ValidateAccessToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("revoking an access token by value", func(t *testing.T) {
		pair := issuePasswordPair(t, env)

		require.NoError(t, env.revocation.Revoke(ctx, testClientID, pair.AccessToken, "access_token"))

		_, err := env.resource.ValidateAccessToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unknown token still succeeds", func(t *testing.T) {
		require.NoError(t, env.revocation.Revoke(ctx, testClientID, "never-issued", ""))
	})

	t.Run("another client's token is not revocable", func(t *testing.T) {
		pair := issuePasswordPair(t, env)

		require.NoError(t, env.revocation.Revoke(ctx, "some-other-client", pair.RefreshToken, "refresh_token"))

		// Still usable: the caller did not own it.
		_, err := env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantRefreshToken,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			RefreshToken: pair.RefreshToken,
		})
		require.NoError(t, err)
	})
}
