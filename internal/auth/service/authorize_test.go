package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestValidatePKCE(t *testing.T) {
	t.Parallel()

	confidential := domain.Client{SecretHash: "argon2:dummy"}
	public := domain.Client{}

	t.Run("public clients require challenge", func(t *testing.T) {
		_, _, err := validatePKCE("", "", public)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("confidential clients may omit challenge", func(t *testing.T) {
		challenge, method, err := validatePKCE("", "", confidential)
		require.Nil(t, err)
		require.Empty(t, challenge)
		require.Empty(t, method)
	})

	t.Run("defaults to S256 when method omitted", func(t *testing.T) {
		challenge, method, err := validatePKCE("pkce-challenge", "", public)
		require.Nil(t, err)
		require.Equal(t, "pkce-challenge", challenge)
		require.Equal(t, "S256", method)
	})

	t.Run("accepts case-insensitive methods", func(t *testing.T) {
		challenge, method, err := validatePKCE("abc", "plain", public)
		require.Nil(t, err)
		require.Equal(t, "abc", challenge)
		require.Equal(t, "plain", method)

		challenge, method, err = validatePKCE("xyz", "s256", public)
		require.Nil(t, err)
		require.Equal(t, "xyz", challenge)
		require.Equal(t, "S256", method)
	})

	t.Run("rejects unsupported methods", func(t *testing.T) {
		_, _, err := validatePKCE("abc", "S123", public)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestVerifyCodeVerifier(t *testing.T) {
	t.Parallel()

	t.Run("plain verifier must match challenge", func(t *testing.T) {
		require.True(t, verifyCodeVerifier("verifier", "plain", "verifier"))
		require.False(t, verifyCodeVerifier("verifier", "plain", "other"))
	})

	t.Run("S256 verifier computes hash", func(t *testing.T) {
		verifier := "example-verifier"
		sum := sha256.Sum256([]byte(verifier))
		challenge := base64.RawURLEncoding.EncodeToString(sum[:])

		require.True(t, verifyCodeVerifier(challenge, "S256", verifier))
		require.False(t, verifyCodeVerifier(challenge, "S256", "wrong"))
	})

	t.Run("empty challenge accepts any verifier", func(t *testing.T) {
		require.True(t, verifyCodeVerifier("", "S256", ""))
		require.True(t, verifyCodeVerifier("", "", "anything"))
	})
}

func TestAuthorizeValidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	valid := AuthorizeRequest{
		ResponseType: "code",
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		Scope:        []string{"test"},
		State:        "xyz",
	}

	t.Run("accepts a valid request", func(t *testing.T) {
		pending, err := env.authorize.Validate(ctx, valid)
		require.NoError(t, err)
		require.Equal(t, testClientID, pending.Client.ID)
		require.Equal(t, []string{"test"}, pending.Scopes)
		require.Equal(t, "xyz", pending.State)
	})

	t.Run("unknown client", func(t *testing.T) {
		req := valid
		req.ClientID = "ghost"
		_, err := env.authorize.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unregistered redirect URI is rejected before anything else", func(t *testing.T) {
		req := valid
		req.RedirectURI = "https://evil.example.com/callback"
		req.ResponseType = "token" // would also be invalid, but redirect wins
		_, err := env.authorize.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirect)
	})

	t.Run("redirect URI matching is exact", func(t *testing.T) {
		req := valid
		req.RedirectURI = testRedirectURI + "/"
		_, err := env.authorize.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirect)
	})

	t.Run("unsupported response type", func(t *testing.T) {
		req := valid
		req.ResponseType = "token"
		_, err := env.authorize.Validate(ctx, req)
		require.ErrorIs(t, err, ErrUnsupportedResponseType)
	})

	t.Run("scope outside client registration", func(t *testing.T) {
		req := valid
		req.Scope = []string{"admin:write"}
		_, err := env.authorize.Validate(ctx, req)
		require.ErrorIs(t, err, ErrInvalidScope)
	})
}

func TestAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	verifier := "correct-horse-battery-staple"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	authorizeAndApprove := func(t *testing.T) *AuthorizeCodeResponse {
		t.Helper()
		pending, err := env.authorize.Validate(ctx, AuthorizeRequest{
			ResponseType:        "code",
			ClientID:            testClientID,
			RedirectURI:         testRedirectURI,
			Scope:               []string{"test"},
			State:               "state-1",
			CodeChallenge:       challenge,
			CodeChallengeMethod: "S256",
		})
		require.NoError(t, err)

		resp, err := env.authorize.Approve(ctx, pending, env.userID)
		require.NoError(t, err)
		require.NotEmpty(t, resp.Code)
		require.Equal(t, "state-1", resp.State)
		return resp
	}

	t.Run("code exchanges for a token pair", func(t *testing.T) {
		resp := authorizeAndApprove(t)

		pair, err := env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantAuthorizationCode,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Code:         resp.Code,
			RedirectURI:  testRedirectURI,
			CodeVerifier: verifier,
		})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "test", pair.Scope)

		auth, err := env.resource.ValidateAccessToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, env.userID, auth.Subject)
	})

	t.Run("code is single use", func(t *testing.T) {
		resp := authorizeAndApprove(t)

		req := TokenRequest{
			GrantType:    domain.GrantAuthorizationCode,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Code:         resp.Code,
			RedirectURI:  testRedirectURI,
			CodeVerifier: verifier,
		}
		_, err := env.server.Exchange(ctx, req)
		require.NoError(t, err)

		_, err = env.server.Exchange(ctx, req)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("wrong verifier is rejected", func(t *testing.T) {
		resp := authorizeAndApprove(t)

		_, err := env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantAuthorizationCode,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Code:         resp.Code,
			RedirectURI:  testRedirectURI,
			CodeVerifier: "not-the-verifier",
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("redirect URI must match issuance", func(t *testing.T) {
		resp := authorizeAndApprove(t)

		_, err := env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantAuthorizationCode,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Code:         resp.Code,
			RedirectURI:  "https://app.example.com/other",
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("code bound to issuing client", func(t *testing.T) {
		resp := authorizeAndApprove(t)

		hash, err := hashForTest("OtherSecret")
		require.NoError(t, err)
		_ = env.store.Clients().CreateClient(ctx, domain.Client{
			ID:           "other-ac",
			Name:         "Other",
			SecretHash:   hash,
			GrantTypes:   []domain.GrantType{domain.GrantAuthorizationCode},
			RedirectURIs: []string{testRedirectURI},
			Scopes:       []string{"test"},
		})

		_, err = env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantAuthorizationCode,
			ClientID:     "other-ac",
			ClientSecret: "OtherSecret",
			Code:         resp.Code,
			RedirectURI:  testRedirectURI,
			CodeVerifier: verifier,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		code, err := codec.NewOpaqueToken()
		require.NoError(t, err)
		require.NoError(t, env.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
			ID:          idx.New().String(),
			UserID:      env.userID,
			ClientID:    testClientID,
			CodeHash:    code.Fingerprint,
			RedirectURI: testRedirectURI,
			Scopes:      []string{"test"},
			ExpiresAt:   time.Now().Add(-time.Minute),
		}))

		_, err = env.server.Exchange(ctx, TokenRequest{
			GrantType:    domain.GrantAuthorizationCode,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Code:         code.Value,
			RedirectURI:  testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("deny issues no code", func(t *testing.T) {
		pending, err := env.authorize.Validate(ctx, AuthorizeRequest{
			ResponseType:  "code",
			ClientID:      testClientID,
			RedirectURI:   testRedirectURI,
			Scope:         []string{"test"},
			CodeChallenge: challenge,
		})
		require.NoError(t, err)
		require.ErrorIs(t, env.authorize.Deny(ctx, pending), ErrAccessDenied)
	})
}
