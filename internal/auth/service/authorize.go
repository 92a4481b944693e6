package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/idx"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

var (
	// ErrInvalidRedirect means the redirect_uri did not exactly match a
	// registered URI. The handler must NOT redirect to it.
	ErrInvalidRedirect = errors.New("invalid_redirect_uri")

	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrAccessDenied            = errors.New("access_denied")
)

// AuthorizeService validates authorization requests and issues single-use
// authorization codes once the resource owner approves.
type AuthorizeService struct {
	Store   store.Store
	Codec   *codec.Codec
	CodeTTL time.Duration
}

// AuthorizeRequest captures the raw query parameters of an authorization request.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// PendingAuthorization is a validated request awaiting the resource owner's
// decision. Everything needed to issue or deny the code is pinned here so
// the approval step cannot be tricked with different parameters.
type PendingAuthorization struct {
	Client              domain.Client
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeCodeResponse contains the authorization code and redirect information.
type AuthorizeCodeResponse struct {
	Code        string
	RedirectURI string
	State       string
}

// Validate checks an authorization request in the order the checks can be
// trusted: client first, then the redirect target, and only then parameters
// that are safe to report via redirect.
//
// Error contract for handlers:
//   - ErrInvalidClient, ErrInvalidRedirect: respond directly, never redirect
//   - ErrUnsupportedResponseType, ErrInvalidScope, ErrInvalidRequest: safe to
//     redirect with error query parameters
func (s *AuthorizeService) Validate(ctx context.Context, req AuthorizeRequest) (*PendingAuthorization, error) {
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, ErrInvalidClient
	}

	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" || !client.AllowsRedirectURI(redirectURI) {
		return nil, ErrInvalidRedirect
	}

	if !strings.EqualFold(strings.TrimSpace(req.ResponseType), "code") {
		return nil, ErrUnsupportedResponseType
	}

	if !client.AllowsGrantType(domain.GrantAuthorizationCode) {
		return nil, ErrUnauthorizedClient
	}

	scopes, err := resolveScopes(req.Scope, client.Scopes)
	if err != nil {
		return nil, err
	}

	challenge, method, err := validatePKCE(req.CodeChallenge, req.CodeChallengeMethod, client)
	if err != nil {
		return nil, err
	}

	return &PendingAuthorization{
		Client:              client,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               req.State,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}, nil
}

// Approve issues a single-use authorization code bound to the approving user.
func (s *AuthorizeService) Approve(ctx context.Context, pending *PendingAuthorization, userID string) (*AuthorizeCodeResponse, error) {
	if pending == nil || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}

	now := time.Now()

	opaque, err := codec.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
		ID:                  idx.New().String(),
		UserID:              userID,
		ClientID:            pending.Client.ID,
		CodeHash:            opaque.Fingerprint,
		RedirectURI:         pending.RedirectURI,
		Scopes:              pending.Scopes,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		ExpiresAt:           now.Add(s.CodeTTL),
	}); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("authorization code issued",
		"client_id", pending.Client.ID, "user_id", userID)

	return &AuthorizeCodeResponse{
		Code:        opaque.Value,
		RedirectURI: pending.RedirectURI,
		State:       pending.State,
	}, nil
}

// Deny records the resource owner's refusal. No code is issued; the handler
// redirects back with access_denied.
func (s *AuthorizeService) Deny(ctx context.Context, pending *PendingAuthorization) error {
	if pending == nil {
		return ErrInvalidRequest
	}
	slogx.FromContext(ctx).Info("authorization denied by resource owner",
		"client_id", pending.Client.ID)
	return ErrAccessDenied
}

// validatePKCE enforces that public clients always send a code challenge.
// The method defaults to S256 when a challenge is present without one.
func validatePKCE(challenge, method string, client domain.Client) (string, string, error) {
	challenge = strings.TrimSpace(challenge)
	method = strings.TrimSpace(method)

	if challenge == "" {
		if !client.Confidential() {
			return "", "", ErrInvalidRequest
		}
		return "", "", nil
	}

	switch {
	case method == "" || strings.EqualFold(method, "S256"):
		method = "S256"
	case strings.EqualFold(method, "plain"):
		method = "plain"
	default:
		return "", "", ErrInvalidRequest
	}

	return challenge, method, nil
}
