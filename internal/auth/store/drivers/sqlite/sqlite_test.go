package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/internal/auth/store/drivers/sqlite"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedClient(t *testing.T, s store.Store) domain.Client {
	t.Helper()

	c := domain.Client{
		ID:           "TEST",
		Name:         "Test Client",
		SecretHash:   "hash",
		GrantTypes:   []domain.GrantType{domain.GrantClientCredentials, domain.GrantRefreshToken},
		RedirectURIs: []string{"https://app.example.com/callback"},
		Scopes:       []string{"test", "profile:read"},
	}
	require.NoError(t, s.Clients().CreateClient(context.Background(), c))
	return c
}

func TestClientsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClient(t, s)

	got, err := s.Clients().GetClientByID(ctx, "TEST")
	require.NoError(t, err)
	require.Equal(t, "Test Client", got.Name)
	require.Equal(t, []domain.GrantType{domain.GrantClientCredentials, domain.GrantRefreshToken}, got.GrantTypes)
	require.Equal(t, []string{"https://app.example.com/callback"}, got.RedirectURIs)
	require.Equal(t, []string{"test", "profile:read"}, got.Scopes)
	require.True(t, got.Confidential())

	_, err = s.Clients().GetClientByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.Clients().CreateClient(ctx, domain.Client{ID: "TEST", Name: "dup"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUsersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := domain.User{
		ID:           idx.New().String(),
		Username:     "user1@example.com",
		PasswordHash: "argon-hash",
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByUsername(ctx, "user1@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	err = s.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "user1@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestRefreshTokenSealedMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClient(t, s)

	hash := cryptox.FingerprintToken("opaque-value")
	rt := domain.RefreshToken{
		ID:            idx.New().String(),
		UserID:        "user-1",
		ClientID:      "TEST",
		TokenHash:     hash,
		AccessTokenID: "jti-1",
		Scopes:        []string{"test", "profile:read"},
		ExpiresAt:     time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)
	require.Equal(t, []string{"test", "profile:read"}, got.Scopes)
	require.Equal(t, "jti-1", got.AccessTokenID)
	require.False(t, got.Revoked)
}

func TestRefreshTokenRevokeIsSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClient(t, s)

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		ClientID:  "TEST",
		TokenHash: cryptox.FingerprintToken("rotate-me"),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

	require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, rt.ID))
	require.ErrorIs(t, s.RefreshTokens().RevokeRefreshToken(ctx, rt.ID), store.ErrNotFound)
}

func TestAuthorizationCodeConcurrentRevokeOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClient(t, s)

	code := domain.AuthorizationCode{
		ID:                  idx.New().String(),
		UserID:              "user-1",
		ClientID:            "TEST",
		CodeHash:            cryptox.FingerprintToken("the-code"),
		RedirectURI:         "https://app.example.com/callback",
		Scopes:              []string{"test"},
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(10 * time.Minute).UTC(),
	}
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code))

	got, err := s.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, code.CodeHash)
	require.NoError(t, err)
	require.Equal(t, "https://app.example.com/callback", got.RedirectURI)
	require.Equal(t, "S256", got.CodeChallengeMethod)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AuthorizationCodes().RevokeAuthorizationCode(ctx, code.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestAccessTokenRevokeAndCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClient(t, s)

	at := domain.AccessToken{
		ID:        "jti-42",
		ClientID:  "TEST",
		Scopes:    []string{"test"},
		ExpiresAt: time.Now().Add(-time.Minute).UTC(), // already expired
	}
	require.NoError(t, s.AccessTokens().CreateAccessToken(ctx, at))

	require.NoError(t, s.AccessTokens().RevokeAccessToken(ctx, "jti-42"))
	require.ErrorIs(t, s.AccessTokens().RevokeAccessToken(ctx, "jti-42"), store.ErrNotFound)

	require.NoError(t, s.AccessTokens().DeleteExpiredAccessTokens(ctx))
	_, err := s.AccessTokens().GetAccessTokenByID(ctx, "jti-42")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestClientsAdminOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Clients().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	seedClient(t, s)

	empty, err = s.Clients().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	list, err := s.Clients().ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Clients().UpdateClientSecretHash(ctx, "TEST", "new-hash"))
	require.NoError(t, s.Clients().UpdateClientScopes(ctx, "TEST", []string{"test"}))

	got, err := s.Clients().GetClientByID(ctx, "TEST")
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.SecretHash)
	require.Equal(t, []string{"test"}, got.Scopes)

	// Deleting the client cascades to its issued tokens.
	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		ClientID:  "TEST",
		TokenHash: cryptox.FingerprintToken("cascade-me"),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

	require.NoError(t, s.Clients().DeleteClient(ctx, "TEST"))
	_, err = s.Clients().GetClientByID(ctx, "TEST")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsersAdminOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	u := domain.User{ID: idx.New().String(), Username: "admin@example.com", PasswordHash: "old"}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "new"))
	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	_, err = s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestScopesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sc := domain.Scope{ID: idx.New().String(), Name: "profile:read", Description: "read profile data"}
	require.NoError(t, s.Scopes().CreateScope(ctx, sc))
	require.NoError(t, s.Scopes().CreateScope(ctx, domain.Scope{ID: idx.New().String(), Name: "test"}))

	got, err := s.Scopes().GetScopeByName(ctx, "profile:read")
	require.NoError(t, err)
	require.Equal(t, sc.ID, got.ID)
	require.Equal(t, "read profile data", got.Description)

	list, err := s.Scopes().ListScopes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.Scopes().DeleteScope(ctx, "test"))
	_, err = s.Scopes().GetScopeByName(ctx, "test")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeAllUserClientRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClient(t, s)

	for _, value := range []string{"one", "two"} {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    "user-1",
			ClientID:  "TEST",
			TokenHash: cryptox.FingerprintToken(value),
			ExpiresAt: time.Now().Add(time.Hour).UTC(),
		}))
	}
	other := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    "user-2",
		ClientID:  "TEST",
		TokenHash: cryptox.FingerprintToken("three"),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, other))

	require.NoError(t, s.RefreshTokens().RevokeAllUserClientRefreshTokens(ctx, "user-1", "TEST"))

	for _, value := range []string{"one", "two"} {
		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(value))
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}
	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, other.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	errBoom := context.Canceled
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clients().CreateClient(ctx, domain.Client{ID: "TXC", Name: "tx client"}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Clients().GetClientByID(ctx, "TXC")
	require.ErrorIs(t, err, store.ErrNotFound)
}
