package service

import (
	"context"
	"strings"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// passwordGrant exchanges resource owner credentials for a token pair. The
// identity provider is an explicit dependency so the credential check has no
// hidden session state behind it.
type passwordGrant struct {
	store    store.Store
	codec    *codec.Codec
	identity IdentityProvider
	cfg      PasswordConfig
}

func (g *passwordGrant) Type() domain.GrantType { return domain.GrantPassword }

func (g *passwordGrant) Exchange(
	ctx context.Context,
	client domain.Client,
	req TokenRequest,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidRequest
	}

	user, err := g.identity.Authenticate(ctx, username, req.Password)
	if err != nil {
		l.Info("password grant authentication failed", "username", username, "client_id", client.ID)
		return nil, ErrInvalidCredentials
	}

	scopes, err := resolveScopes(req.Scopes, client.Scopes)
	if err != nil {
		return nil, err
	}

	return mintPair(ctx, g.store, g.codec, mintParams{
		Subject:    user.ID,
		ClientID:   client.ID,
		Scopes:     scopes,
		RefreshTTL: g.cfg.RefreshTTL,
		Now:        now,
	})
}
