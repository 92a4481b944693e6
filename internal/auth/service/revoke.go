package service

import (
	"context"
	"errors"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// RevocationService implements RFC 7009 token revocation. Per the RFC a
// request for an unknown token still succeeds: the desired end state
// (token unusable) already holds.
type RevocationService struct {
	Store store.Store
	Codec *codec.Codec
}

// Revoke invalidates the presented token. The hint is only an optimization;
// when it misses, the other token kind is tried.
func (s *RevocationService) Revoke(ctx context.Context, clientID, token, tokenTypeHint string) error {
	l := slogx.FromContext(ctx)

	tryOrder := []string{"refresh_token", "access_token"}
	if tokenTypeHint == "access_token" {
		tryOrder = []string{"access_token", "refresh_token"}
	}

	for _, kind := range tryOrder {
		var err error
		switch kind {
		case "refresh_token":
			err = s.revokeRefresh(ctx, clientID, token)
		case "access_token":
			err = s.revokeAccess(ctx, clientID, token)
		}
		if err == nil {
			l.Info("token revoked", "client_id", clientID, "kind", kind)
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, ErrTokenInvalid) {
			return err
		}
	}

	// Unknown or already-revoked token: success per RFC 7009.
	return nil
}

func (s *RevocationService) revokeRefresh(ctx context.Context, clientID, token string) error {
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, s.Codec.Fingerprint(token))
	if err != nil {
		return err
	}
	// A client may only revoke its own tokens.
	if rt.ClientID != clientID {
		return store.ErrNotFound
	}
	if err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
		return err
	}
	// The access token minted alongside dies with its refresh token.
	if rt.AccessTokenID != "" {
		if err := s.Store.AccessTokens().RevokeAccessToken(ctx, rt.AccessTokenID); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *RevocationService) revokeAccess(ctx context.Context, clientID, token string) error {
	claims, err := s.Codec.DecodeAccessToken(token)
	if err != nil {
		return ErrTokenInvalid
	}
	record, err := s.Store.AccessTokens().GetAccessTokenByID(ctx, claims.ID)
	if err != nil {
		return err
	}
	if record.ClientID != clientID {
		return store.ErrNotFound
	}
	return s.Store.AccessTokens().RevokeAccessToken(ctx, record.ID)
}
