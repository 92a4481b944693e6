package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/pkg/cryptox"
)

type authorizationCodesRepo struct {
	db dbtx
}

// authorizationCodeMeta holds the fields that must match at redemption time.
// Sealed with the master key before hitting disk.
type authorizationCodeMeta struct {
	RedirectURI         string   `json:"redirect_uri,omitempty"`
	Scopes              []string `json:"scopes,omitempty"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	meta, err := json.Marshal(authorizationCodeMeta{
		RedirectURI:         c.RedirectURI,
		Scopes:              c.Scopes,
		CodeChallenge:       c.CodeChallenge,
		CodeChallengeMethod: c.CodeChallengeMethod,
	})
	if err != nil {
		return err
	}
	sealed, err := cryptox.Seal(meta)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (id, user_id, client_id, code_hash, meta_enc, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.UserID, c.ClientID, c.CodeHash, sealed, c.ExpiresAt.Unix(), c.CreatedAt.Unix(),
	)
	return err
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	var (
		c                    domain.AuthorizationCode
		sealed               []byte
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, code_hash, meta_enc, expires_at, revoked, created_at
		FROM authorization_codes WHERE code_hash = ?`, hash).
		Scan(&c.ID, &c.UserID, &c.ClientID, &c.CodeHash, &sealed, &expiresAt, &c.Revoked, &createdAt)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}

	plain, err := cryptox.Open(sealed)
	if err != nil {
		return domain.AuthorizationCode{}, err
	}
	var meta authorizationCodeMeta
	if err := json.Unmarshal(plain, &meta); err != nil {
		return domain.AuthorizationCode{}, err
	}

	c.RedirectURI = meta.RedirectURI
	c.Scopes = meta.Scopes
	c.CodeChallenge = meta.CodeChallenge
	c.CodeChallengeMethod = meta.CodeChallengeMethod
	c.ExpiresAt = unixOrZero(expiresAt)
	c.CreatedAt = unixOrZero(createdAt)
	return c, nil
}

// RevokeAuthorizationCode is a compare-and-set: only an unconsumed code
// transitions to revoked, so exactly one concurrent redemption wins.
func (r *authorizationCodesRepo) RevokeAuthorizationCode(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorization_codes SET revoked = 1 WHERE id = ? AND revoked = 0`, id)
	return affectedOrNotFound(res, err)
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < ?`, time.Now().UTC().Unix())
	return err
}
