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
)

// authorizationCodeGrant redeems a single-use authorization code for a token
// pair. The code is consumed with a compare-and-set revoke inside the same
// transaction that mints the tokens, so a replayed code loses the race.
type authorizationCodeGrant struct {
	store store.Store
	codec *codec.Codec
	cfg   AuthorizationCodeConfig
}

func (g *authorizationCodeGrant) Type() domain.GrantType { return domain.GrantAuthorizationCode }

func (g *authorizationCodeGrant) Exchange(
	ctx context.Context,
	client domain.Client,
	req TokenRequest,
) (*domain.TokenPair, error) {
	now := time.Now()

	code := strings.TrimSpace(req.Code)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidRequest
	}

	codeHash := g.codec.Fingerprint(code)

	var result *domain.TokenPair
	err := g.store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, codeHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if authCode.ClientID != client.ID {
			return ErrInvalidGrant
		}
		if authCode.RedirectURI != redirectURI {
			return ErrInvalidGrant
		}
		if !domain.Usable(authCode, now) {
			return ErrInvalidGrant
		}
		if !verifyCodeVerifier(authCode.CodeChallenge, authCode.CodeChallengeMethod, req.CodeVerifier) {
			return ErrInvalidGrant
		}

		// Consume the code. Losing this compare-and-set means another
		// redemption got here first.
		if err := tx.AuthorizationCodes().RevokeAuthorizationCode(ctx, authCode.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		pair, err := mintPair(ctx, tx, g.codec, mintParams{
			Subject:    authCode.UserID,
			ClientID:   client.ID,
			Scopes:     authCode.Scopes,
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

// mintParams describes the token pair a grant wants issued.
type mintParams struct {
	Subject    string // empty for client-only tokens
	ClientID   string
	Scopes     []string
	RefreshTTL time.Duration // zero means no refresh token
	Now        time.Time
}

// mintPair signs an access token, persists its record, and (when asked)
// issues and persists a refresh token bound to it.
func mintPair(ctx context.Context, st store.Store, cdc *codec.Codec, p mintParams) (*domain.TokenPair, error) {
	accessToken, claims, err := cdc.MintAccessToken(p.Subject, p.ClientID, p.Scopes, p.Now)
	if err != nil {
		return nil, err
	}

	if err := st.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:        claims.ID,
		UserID:    p.Subject,
		ClientID:  p.ClientID,
		Scopes:    p.Scopes,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		return nil, err
	}

	pair := &domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   cdc.AccessTTL(),
		Scope:       strings.Join(p.Scopes, " "),
	}

	if p.RefreshTTL > 0 {
		opaque, err := codec.NewOpaqueToken()
		if err != nil {
			return nil, err
		}
		if err := st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:            idx.New().String(),
			UserID:        p.Subject,
			ClientID:      p.ClientID,
			TokenHash:     opaque.Fingerprint,
			AccessTokenID: claims.ID,
			Scopes:        p.Scopes,
			ExpiresAt:     p.Now.Add(p.RefreshTTL),
		}); err != nil {
			return nil, err
		}
		pair.RefreshToken = opaque.Value
	}

	return pair, nil
}
