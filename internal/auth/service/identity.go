package service

import (
	"context"
	"errors"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
)

// IdentityProvider verifies resource owner credentials for the password
// grant. It is passed in explicitly so deployments can swap the user store
// for an external directory without touching the grant.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (domain.User, error)
}

// StoreIdentityProvider authenticates against the users table with argon2id
// password hashes.
type StoreIdentityProvider struct {
	Store store.Store
}

func (p *StoreIdentityProvider) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := p.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifySecret(password, user.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	return user, nil
}
