package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
)

type clientsRepo struct {
	db dbtx
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	grantTypes := make([]string, 0, len(c.GrantTypes))
	for _, gt := range c.GrantTypes {
		grantTypes = append(grantTypes, gt.String())
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, secret_hash, grant_types, redirect_uris, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.SecretHash,
		joinFields(grantTypes), joinFields(c.RedirectURIs), joinFields(c.Scopes),
		c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, secret_hash, grant_types, redirect_uris, scopes, created_at, updated_at
		FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, secret_hash, grant_types, redirect_uris, scopes, created_at, updated_at
		FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET secret_hash = ?, updated_at = ? WHERE id = ?`,
		secretHash, time.Now().UTC().Unix(), clientID)
	return affectedOrNotFound(res, err)
}

func (r *clientsRepo) UpdateClientScopes(ctx context.Context, clientID string, scopes []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET scopes = ?, updated_at = ? WHERE id = ?`,
		joinFields(scopes), time.Now().UTC().Unix(), clientID)
	return affectedOrNotFound(res, err)
}

func (r *clientsRepo) DeleteClient(ctx context.Context, clientID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, clientID)
	return affectedOrNotFound(res, err)
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c                    domain.Client
		grantTypes           string
		redirectURIs, scopes string
		createdAt, updatedAt int64
	)
	err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &grantTypes, &redirectURIs, &scopes, &createdAt, &updatedAt)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	for _, gt := range splitFields(grantTypes) {
		c.GrantTypes = append(c.GrantTypes, domain.GrantType(gt))
	}
	c.RedirectURIs = splitFields(redirectURIs)
	c.Scopes = splitFields(scopes)
	c.CreatedAt = unixOrZero(createdAt)
	c.UpdatedAt = unixOrZero(updatedAt)
	return c, nil
}
