package service

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
)

var ErrTokenInvalid = errors.New("invalid_token")

// Authentication is the verified principal behind a bearer token.
type Authentication struct {
	TokenID   string
	Subject   string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
}

// ResourceValidator checks bearer tokens presented to protected resources.
// Signature, issuer and expiry come from the JWT itself; revocation state
// comes from the store, so a revoked token dies before its exp.
type ResourceValidator struct {
	Store store.Store
	Codec *codec.Codec
}

// ValidateAccessToken verifies the raw bearer token and returns the principal.
// All failure modes collapse into ErrTokenInvalid to avoid oracle behavior.
func (v *ResourceValidator) ValidateAccessToken(ctx context.Context, raw string) (*Authentication, error) {
	claims, err := v.Codec.DecodeAccessToken(raw)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	record, err := v.Store.AccessTokens().GetAccessTokenByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if !domain.Usable(record, time.Now()) {
		return nil, ErrTokenInvalid
	}

	return &Authentication{
		TokenID:   claims.ID,
		Subject:   claims.Subject,
		ClientID:  claims.ClientID,
		Scopes:    claims.Scopes,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Introspect reports token state per RFC 7662: inactive tokens yield
// active=false with no metadata rather than an error.
func (v *ResourceValidator) Introspect(ctx context.Context, raw string) (*Authentication, bool) {
	auth, err := v.ValidateAccessToken(ctx, raw)
	if err != nil {
		return nil, false
	}
	return auth, true
}
