package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/idx"
)

// seed provisions the configured client, scopes and user on first boot.
// It only runs against an empty database so it never overwrites live data.
func seed(ctx context.Context, st store.Store, cfg SeedConfig, logger *slog.Logger) error {
	if cfg.ClientID == "" {
		return nil
	}

	empty, err := st.Clients().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check for existing clients: %w", err)
	}
	if !empty {
		return nil
	}

	var secretHash string
	if cfg.ClientSecret != "" {
		secretHash, err = cryptox.HashSecret(cfg.ClientSecret)
		if err != nil {
			return fmt.Errorf("hash seed client secret: %w", err)
		}
	}

	return st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clients().CreateClient(ctx, domain.Client{
			ID:           cfg.ClientID,
			Name:         cfg.ClientName,
			SecretHash:   secretHash,
			GrantTypes:   domain.AllowedGrantTypes,
			RedirectURIs: cfg.RedirectURIs,
			Scopes:       cfg.Scopes,
		}); err != nil {
			return fmt.Errorf("create seed client: %w", err)
		}

		for _, name := range cfg.Scopes {
			if err := tx.Scopes().CreateScope(ctx, domain.Scope{
				ID:   idx.New().String(),
				Name: name,
			}); err != nil {
				return fmt.Errorf("create seed scope %q: %w", name, err)
			}
		}

		if cfg.Username != "" {
			passwordHash, err := cryptox.HashSecret(cfg.Password)
			if err != nil {
				return fmt.Errorf("hash seed user password: %w", err)
			}
			if err := tx.Users().CreateUser(ctx, domain.User{
				ID:           idx.New().String(),
				Username:     cfg.Username,
				PasswordHash: passwordHash,
			}); err != nil {
				return fmt.Errorf("create seed user: %w", err)
			}
		}

		logger.Info("seeded initial data",
			"client_id", cfg.ClientID,
			"scopes", cfg.Scopes,
			"user", cfg.Username,
		)
		return nil
	})
}
