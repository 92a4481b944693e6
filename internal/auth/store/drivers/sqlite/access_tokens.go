package sqlite

import (
	"context"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
)

type accessTokensRepo struct {
	db dbtx
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, user_id, client_id, scopes, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		t.ID, t.UserID, t.ClientID, joinFields(t.Scopes), t.ExpiresAt.Unix(), t.CreatedAt.Unix(),
	)
	return err
}

func (r *accessTokensRepo) GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error) {
	var (
		t                    domain.AccessToken
		scopes               string
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, scopes, expires_at, revoked, created_at
		FROM access_tokens WHERE id = ?`, id).
		Scan(&t.ID, &t.UserID, &t.ClientID, &scopes, &expiresAt, &t.Revoked, &createdAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.Scopes = splitFields(scopes)
	t.ExpiresAt = unixOrZero(expiresAt)
	t.CreatedAt = unixOrZero(createdAt)
	return t, nil
}

// RevokeAccessToken is a compare-and-set: only a live token transitions to
// revoked, so exactly one concurrent caller wins.
func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1 WHERE id = ? AND revoked = 0`, id)
	return affectedOrNotFound(res, err)
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM access_tokens WHERE expires_at < ?`, time.Now().UTC().Unix())
	return err
}
