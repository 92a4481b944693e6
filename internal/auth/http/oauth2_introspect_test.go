package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/halcyonlabs/keygate/pkg/oauthx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospectEndpoint(t *testing.T) {
	ts := newTestServer(t)
	pair := ts.passwordGrant(t)

	introspect := func(t *testing.T, token string) oauthx.IntrospectionResponse {
		t.Helper()
		rec := ts.postForm(t, "/v1/oauth2/introspect", url.Values{
			"token": {token},
		}, withBasicAuth(testClientID, testClientSecret))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp oauthx.IntrospectionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	t.Run("live token is active with metadata", func(t *testing.T) {
		resp := introspect(t, pair.AccessToken)
		assert.True(t, resp.Active)
		assert.Equal(t, testClientID, resp.ClientID)
		assert.Equal(t, ts.userID, resp.Sub)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, testIssuer, resp.Iss)
		assert.NotEmpty(t, resp.Jti)
		assert.Contains(t, resp.Scope, "test")
		assert.Greater(t, resp.Exp, int64(0))
	})

	t.Run("garbage token is inactive", func(t *testing.T) {
		resp := introspect(t, "garbage")
		assert.False(t, resp.Active)
		assert.Empty(t, resp.ClientID)
	})

	t.Run("revoked token is inactive", func(t *testing.T) {
		rec := ts.postForm(t, "/v1/oauth2/revoke", url.Values{
			"token":           {pair.AccessToken},
			"token_type_hint": {"access_token"},
		}, withBasicAuth(testClientID, testClientSecret))
		require.Equal(t, http.StatusOK, rec.Code)

		resp := introspect(t, pair.AccessToken)
		assert.False(t, resp.Active)
	})

	t.Run("requires client authentication", func(t *testing.T) {
		rec := ts.postForm(t, "/v1/oauth2/introspect", url.Values{
			"token": {pair.AccessToken},
		}, withBasicAuth(testClientID, "wrong"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_client", decodeErrorCode(t, rec))
	})
}
