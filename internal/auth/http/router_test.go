package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/service"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/internal/auth/store/drivers/sqlite"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/idx"
	"github.com/halcyonlabs/keygate/pkg/jwtx"
	"github.com/halcyonlabs/keygate/pkg/oauthx"
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

type testServer struct {
	router *Router
	store  store.Store
	userID string
}

func newTestServer(t *testing.T) *testServer {
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
		ID:           testClientID,
		Name:         "Test Client",
		SecretHash:   secretHash,
		GrantTypes:   domain.AllowedGrantTypes,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"test", "profile:read"},
	}))

	passwordHash, err := cryptox.HashSecret(testPassword)
	require.NoError(t, err)
	userID := idx.New().String()
	require.NoError(t, st.Users().CreateUser(ctx, domain.User{
		ID:           userID,
		Username:     testUsername,
		PasswordHash: passwordHash,
	}))

	identity := &service.StoreIdentityProvider{Store: st}
	server, err := service.NewServer(st, cdc, identity, service.Config{
		AuthorizationCode: service.AuthorizationCodeConfig{CodeTTL: 10 * time.Minute, RefreshTTL: 30 * 24 * time.Hour},
		Password:          service.PasswordConfig{RefreshTTL: 30 * 24 * time.Hour},
		RefreshToken:      service.RefreshTokenConfig{RefreshTTL: 30 * 24 * time.Hour},
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	router := NewRouter(keys.KeySet, testIssuer, "test", st, logger)
	router.TokenService = server
	router.AuthorizeService = &service.AuthorizeService{Store: st, Codec: cdc, CodeTTL: 10 * time.Minute}
	router.RevocationService = &service.RevocationService{Store: st, Codec: cdc}
	router.ResourceValidator = &service.ResourceValidator{Store: st, Codec: cdc}
	router.Identity = identity
	router.ApplyRoutes()

	return &testServer{router: router, store: st, userID: userID}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

// postForm issues a form-encoded POST through the full router stack.
func (ts *testServer) postForm(t *testing.T, path string, form url.Values, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(t *testing.T, path string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func withBasicAuth(id, secret string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(id, secret) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decodeTokenResponse(t *testing.T, rec *httptest.ResponseRecorder) oauthx.TokenResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, "token endpoint returned %d: %s", rec.Code, rec.Body.String())
	var resp oauthx.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error
}

// passwordGrant runs a password grant and returns the issued pair.
func (ts *testServer) passwordGrant(t *testing.T) oauthx.TokenResponse {
	t.Helper()
	rec := ts.postForm(t, "/v1/oauth2/token", url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
	}, withBasicAuth(testClientID, testClientSecret))
	return decodeTokenResponse(t, rec)
}
