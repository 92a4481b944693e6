package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/internal/auth/store/drivers/sqlite"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/idx"
	"github.com/halcyonlabs/keygate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer       = "keygate-test"
	testClientID     = "TEST"
	testClientSecret = "TestSecret"
	testUsername     = "user1@example.com"
	testPassword     = "123456"
	testRedirectURI  = "https://app.example.com/callback"
)

type testEnv struct {
	store      store.Store
	codec      *codec.Codec
	server     *Server
	authorize  *AuthorizeService
	resource   *ResourceValidator
	revocation *RevocationService
	userID     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, Config{
		AuthorizationCode: AuthorizationCodeConfig{CodeTTL: 10 * time.Minute, RefreshTTL: 30 * 24 * time.Hour},
		Password:          PasswordConfig{RefreshTTL: 30 * 24 * time.Hour},
		RefreshToken:      RefreshTokenConfig{RefreshTTL: 30 * 24 * time.Hour},
	})
}

func hashForTest(secret string) (string, error) {
	return cryptox.HashSecret(secret)
}

func newTestEnvWithConfig(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	cdc := codec.New(keys, testIssuer, time.Hour)

	secretHash, err := cryptox.HashSecret(testClientSecret)
	require.NoError(t, err)
	require.NoError(t, st.Clients().CreateClient(ctx, domain.Client{
		ID:         testClientID,
		Name:       "Test Client",
		SecretHash: secretHash,
		GrantTypes: domain.AllowedGrantTypes,
		RedirectURIs: []string{
			testRedirectURI,
		},
		Scopes: []string{"test", "profile:read"},
	}))

	passwordHash, err := cryptox.HashSecret(testPassword)
	require.NoError(t, err)
	userID := idx.New().String()
	require.NoError(t, st.Users().CreateUser(ctx, domain.User{
		ID:           userID,
		Username:     testUsername,
		PasswordHash: passwordHash,
	}))

	identity := &StoreIdentityProvider{Store: st}
	server, err := NewServer(st, cdc, identity, cfg)
	require.NoError(t, err)

	return &testEnv{
		store:      st,
		codec:      cdc,
		server:     server,
		authorize:  &AuthorizeService{Store: st, Codec: cdc, CodeTTL: 10 * time.Minute},
		resource:   &ResourceValidator{Store: st, Codec: cdc},
		revocation: &RevocationService{Store: st, Codec: cdc},
		userID:     userID,
	}
}
