package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
	"github.com/halcyonlabs/keygate/internal/auth/store"
)

type scopesRepo struct {
	db dbtx
}

func (r *scopesRepo) CreateScope(ctx context.Context, s domain.Scope) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scopes (id, name, description, created_at)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.Name, s.Description, s.CreatedAt.Unix(),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *scopesRepo) GetScopeByName(ctx context.Context, name string) (domain.Scope, error) {
	var (
		s         domain.Scope
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM scopes WHERE name = ?`, name).
		Scan(&s.ID, &s.Name, &s.Description, &createdAt)
	if err != nil {
		return domain.Scope{}, mapNotFound(err)
	}
	s.CreatedAt = unixOrZero(createdAt)
	return s, nil
}

func (r *scopesRepo) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM scopes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []domain.Scope
	for rows.Next() {
		var (
			s         domain.Scope
			createdAt int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt = unixOrZero(createdAt)
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}

func (r *scopesRepo) DeleteScope(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scopes WHERE name = ?`, name)
	return affectedOrNotFound(res, err)
}
