package service

import (
	"context"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/slogx"
)

// clientCredentialsGrant issues machine-to-machine tokens. The client is the
// subject; no user is involved and no refresh token is issued since the
// client can always re-authenticate.
type clientCredentialsGrant struct {
	store store.Store
	codec *codec.Codec
}

func (g *clientCredentialsGrant) Type() domain.GrantType { return domain.GrantClientCredentials }

func (g *clientCredentialsGrant) Exchange(
	ctx context.Context,
	client domain.Client,
	req TokenRequest,
) (*domain.TokenPair, error) {
	now := time.Now()

	// Public clients cannot prove their identity, so they never get this grant.
	if !client.Confidential() {
		slogx.FromContext(ctx).Warn("client_credentials attempted with public client", "client_id", client.ID)
		return nil, ErrInvalidClient
	}

	scopes, err := resolveScopes(req.Scopes, client.Scopes)
	if err != nil {
		return nil, err
	}

	return mintPair(ctx, g.store, g.codec, mintParams{
		Subject:  client.ID,
		ClientID: client.ID,
		Scopes:   scopes,
		Now:      now,
	})
}
