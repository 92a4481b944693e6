package store

import (
	"context"
	"errors"

	"github.com/halcyonlabs/keygate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Clients() Clients
	Scopes() Scopes
	Users() Users
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	AuthorizationCodes() AuthorizationCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh rotation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// GetClientByID fetches a client by its public identifier.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients ordered by creation date (newest first).
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client (secret_hash may be empty for public clients).
	CreateClient(ctx context.Context, c domain.Client) error

	UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error
	UpdateClientScopes(ctx context.Context, clientID string, scopes []string) error

	// DeleteClient cascades to issued tokens (per schema).
	DeleteClient(ctx context.Context, clientID string) error

	// IsEmpty returns true if there are no clients.
	IsEmpty(ctx context.Context) (bool, error)
}

type Scopes interface {
	// GetScopeByName fetches a scope definition by name.
	GetScopeByName(ctx context.Context, name string) (domain.Scope, error)

	// ListScopes returns all defined scopes ordered by name.
	ListScopes(ctx context.Context) ([]domain.Scope, error)

	// CreateScope inserts a new scope definition.
	CreateScope(ctx context.Context, s domain.Scope) error

	// DeleteScope removes a scope definition.
	DeleteScope(ctx context.Context, name string) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the password grant.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// DeleteUser cascades to issued tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type AccessTokens interface {
	// CreateAccessToken stores a new access token record keyed by jti.
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	// GetAccessTokenByID returns the record for a jti.
	GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error)

	// RevokeAccessToken atomically flips revoked from 0 to 1. Returns
	// ErrNotFound when the token does not exist or was already revoked.
	RevokeAccessToken(ctx context.Context, id string) error

	// DeleteExpiredAccessTokens is housekeeping.
	DeleteExpiredAccessTokens(ctx context.Context) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken atomically flips revoked from 0 to 1 by id. Returns
	// ErrNotFound when the token does not exist or was already revoked. This
	// is the compare-and-set that makes rotation single-use under races.
	RevokeRefreshToken(ctx context.Context, id string) error

	// RevokeAllUserClientRefreshTokens bulk revocation for a user+client pair.
	RevokeAllUserClientRefreshTokens(ctx context.Context, userID, clientID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a new code issuance.
	CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error

	// GetAuthorizationCodeByHash returns the code record by its fingerprint.
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// RevokeAuthorizationCode atomically flips revoked from 0 to 1 by id.
	// Returns ErrNotFound when the code does not exist or was already
	// consumed, which is what makes codes single-use under races.
	RevokeAuthorizationCode(ctx context.Context, id string) error

	// DeleteExpiredAuthorizationCodes is housekeeping.
	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}
