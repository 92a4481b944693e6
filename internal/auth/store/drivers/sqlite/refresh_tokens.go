package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
)

type refreshTokensRepo struct {
	db dbtx
}

// refreshTokenMeta is the sensitive slice of the record. It is sealed with
// the master key before hitting disk; lookups only ever go through token_hash
// so the sealed column is never queried.
type refreshTokenMeta struct {
	Scopes []string `json:"scopes,omitempty"`
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	meta, err := json.Marshal(refreshTokenMeta{Scopes: t.Scopes})
	if err != nil {
		return err
	}
	sealed, err := cryptox.Seal(meta)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, client_id, token_hash, access_token_id, meta_enc, expires_at, revoked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, t.AccessTokenID, sealed,
		t.ExpiresAt.Unix(), t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t                               domain.RefreshToken
		sealed                          []byte
		expiresAt, createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, token_hash, access_token_id, meta_enc, expires_at, revoked, created_at, updated_at
		FROM refresh_tokens WHERE token_hash = ?`, hash).
		Scan(&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &t.AccessTokenID, &sealed,
			&expiresAt, &t.Revoked, &createdAt, &updatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	plain, err := cryptox.Open(sealed)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	var meta refreshTokenMeta
	if err := json.Unmarshal(plain, &meta); err != nil {
		return domain.RefreshToken{}, err
	}

	t.Scopes = meta.Scopes
	t.ExpiresAt = unixOrZero(expiresAt)
	t.CreatedAt = unixOrZero(createdAt)
	t.UpdatedAt = unixOrZero(updatedAt)
	return t, nil
}

// RevokeRefreshToken is a compare-and-set: only a live token transitions to
// revoked, so exactly one concurrent rotation wins.
func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE id = ? AND revoked = 0`,
		time.Now().UTC().Unix(), id)
	return affectedOrNotFound(res, err)
}

func (r *refreshTokensRepo) RevokeAllUserClientRefreshTokens(ctx context.Context, userID, clientID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE user_id = ? AND client_id = ? AND revoked = 0`,
		time.Now().UTC().Unix(), userID, clientID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now().UTC().Unix())
	return err
}
