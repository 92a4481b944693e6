package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidRefresh       = errors.New("invalid_refresh_token")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidRequest       = errors.New("invalid_request")
)

// TokenRequest carries the parsed parameters of a token endpoint call. Each
// grant strategy reads the fields it needs and ignores the rest.
type TokenRequest struct {
	GrantType    domain.GrantType
	ClientID     string
	ClientSecret string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// password
	Username string
	Password string

	// refresh_token
	RefreshToken string

	// Requested scopes; empty means grant defaults.
	Scopes []string
}

// Grant is one token exchange strategy. Implementations receive the already
// authenticated client and must not re-verify its secret.
type Grant interface {
	Type() domain.GrantType
	Exchange(ctx context.Context, client domain.Client, req TokenRequest) (*domain.TokenPair, error)
}

// Config holds the token lifetimes and per-grant knobs.
type Config struct {
	AuthorizationCode AuthorizationCodeConfig
	Password          PasswordConfig
	RefreshToken      RefreshTokenConfig
}

type AuthorizationCodeConfig struct {
	CodeTTL    time.Duration
	RefreshTTL time.Duration
}

type PasswordConfig struct {
	RefreshTTL time.Duration
}

type RefreshTokenConfig struct {
	RefreshTTL time.Duration

	// RevokeAccessOnRotate also revokes the access token that was minted
	// alongside the rotated refresh token. Off by default: the old access
	// token simply runs out its remaining lifetime.
	RevokeAccessOnRotate bool
}

// Server authenticates clients and dispatches token requests to the grant
// registered for the request's grant_type. The registry is fixed at
// construction; an unknown grant_type can only ever mean unsupported.
type Server struct {
	store    store.Store
	codec    *codec.Codec
	registry map[domain.GrantType]Grant
}

func NewServer(st store.Store, cdc *codec.Codec, identity IdentityProvider, cfg Config) (*Server, error) {
	grants := []Grant{
		&authorizationCodeGrant{store: st, codec: cdc, cfg: cfg.AuthorizationCode},
		&clientCredentialsGrant{store: st, codec: cdc},
		&passwordGrant{store: st, codec: cdc, identity: identity, cfg: cfg.Password},
		&refreshTokenGrant{store: st, codec: cdc, cfg: cfg.RefreshToken},
	}

	registry := make(map[domain.GrantType]Grant, len(grants))
	for _, g := range grants {
		if !g.Type().Valid() {
			return nil, fmt.Errorf("service: grant registered with unknown type %q", g.Type())
		}
		if _, dup := registry[g.Type()]; dup {
			return nil, fmt.Errorf("service: duplicate grant registration for %q", g.Type())
		}
		registry[g.Type()] = g
	}

	return &Server{
		store:    st,
		codec:    cdc,
		registry: registry,
	}, nil
}

// Exchange runs a token request end to end: client authentication, grant
// authorization check, then the grant strategy itself.
func (s *Server) Exchange(ctx context.Context, req TokenRequest) (*domain.TokenPair, error) {
	grant, ok := s.registry[req.GrantType]
	if !ok {
		return nil, ErrUnsupportedGrantType
	}

	client, err := s.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	if !client.AllowsGrantType(req.GrantType) {
		slogx.FromContext(ctx).Info("grant type not registered for client",
			"client_id", client.ID, "grant_type", req.GrantType.String())
		return nil, ErrUnauthorizedClient
	}

	return grant.Exchange(ctx, client, req)
}

// AuthenticateClient loads the client and, for confidential clients, verifies
// the presented secret. Unknown client and bad secret are indistinguishable
// to the caller.
func (s *Server) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	l := slogx.FromContext(ctx)

	if strings.TrimSpace(clientID) == "" {
		return domain.Client{}, ErrInvalidClient
	}

	client, err := s.store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}

	if client.Confidential() {
		if clientSecret == "" || cryptox.VerifySecret(clientSecret, client.SecretHash) != nil {
			l.Info("client authentication failed", "client_id", clientID)
			return domain.Client{}, ErrInvalidClient
		}
	}

	return client, nil
}

// resolveScopes applies the narrowing rule: no request means the full granted
// set, and any requested scope outside the granted set is an error.
func resolveScopes(requested, granted []string) ([]string, error) {
	if len(requested) == 0 {
		return dedupe(granted), nil
	}
	if !domain.ScopesWithin(requested, granted) {
		return nil, ErrInvalidScope
	}
	return dedupe(requested), nil
}

// resolveTokenScopes is resolveScopes against the scope grant a stored token
// carries.
func resolveTokenScopes[T domain.HasScopes](requested []string, source T) ([]string, error) {
	return resolveScopes(requested, source.TokenScopes())
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		// No PKCE challenge stored; accept regardless of verifier.
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	method = strings.TrimSpace(method)
	switch {
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
