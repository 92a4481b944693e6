package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
)

// refreshTokenGrant rotates a refresh token: the presented token is revoked
// with a compare-and-set and a fresh pair is minted in the same transaction.
// A token that lost the rotation race reads as already revoked.
type refreshTokenGrant struct {
	store store.Store
	codec *codec.Codec
	cfg   RefreshTokenConfig
}

func (g *refreshTokenGrant) Type() domain.GrantType { return domain.GrantRefreshToken }

func (g *refreshTokenGrant) Exchange(
	ctx context.Context,
	client domain.Client,
	req TokenRequest,
) (*domain.TokenPair, error) {
	now := time.Now()

	opaque := strings.TrimSpace(req.RefreshToken)
	if opaque == "" {
		return nil, ErrInvalidRequest
	}
	fp := g.codec.Fingerprint(opaque)

	var result *domain.TokenPair
	err := g.store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if !domain.Usable(rt, now) {
			return ErrInvalidRefresh
		}
		if rt.ClientID != client.ID {
			return ErrInvalidClient
		}

		// Narrowing only: the new pair can never carry scopes the rotated
		// token did not already have.
		scopes, err := resolveTokenScopes(req.Scopes, rt)
		if err != nil {
			return err
		}

		// Consume the old token. Losing this compare-and-set means a
		// concurrent rotation already won.
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if g.cfg.RevokeAccessOnRotate && rt.AccessTokenID != "" {
			// Best effort: the paired access token may have expired and
			// been swept already.
			if err := tx.AccessTokens().RevokeAccessToken(ctx, rt.AccessTokenID); err != nil &&
				!errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		pair, err := mintPair(ctx, tx, g.codec, mintParams{
			Subject:    rt.UserID,
			ClientID:   client.ID,
			Scopes:     scopes,
			RefreshTTL: g.cfg.RefreshTTL,
			Now:        now,
		})
		if err != nil {
			return err
		}
		result = pair
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
