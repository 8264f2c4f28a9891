package store

import (
	"context"
	"errors"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Tenants() Tenants
	Identities() Identities
	Grants() Grants

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. A non-nil error from fn
	// rolls back; nil commits. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
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

type Tenants interface {
	// GetTenantByID resolves a tenant by its client_id.
	GetTenantByID(ctx context.Context, id string) (domain.Tenant, error)

	// ListTenants returns all tenants ordered by creation date (newest first).
	ListTenants(ctx context.Context) ([]domain.Tenant, error)

	// CreateTenant inserts a new tenant.
	CreateTenant(ctx context.Context, t domain.Tenant) error

	UpdateTenantRedirectURI(ctx context.Context, tenantID, redirectURI string) error
	UpdateTenantScopes(ctx context.Context, tenantID string, scopes []string) error

	// DeleteTenant refuses protected tenants at the service layer, not here.
	DeleteTenant(ctx context.Context, tenantID string) error

	// IsEmpty reports whether any tenant exists, for first-run seeding.
	IsEmpty(ctx context.Context) (bool, error)
}

type Identities interface {
	// GetIdentityByID returns an identity by its id.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// GetIdentityByUsername is the login-path lookup; usernames are scoped
	// to a tenant.
	GetIdentityByUsername(ctx context.Context, tenantID, username string) (domain.Identity, error)

	// CreateIdentity inserts a new identity (id is provided by app via ULID).
	CreateIdentity(ctx context.Context, ident domain.Identity) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, identityID, newHash string) error

	// UpdateRoleMask replaces the role bitmask.
	UpdateRoleMask(ctx context.Context, identityID string, mask uint64) error

	// DeleteIdentity cascades to grants (per schema).
	DeleteIdentity(ctx context.Context, identityID string) error

	// IsEmpty reports whether any identity exists.
	IsEmpty(ctx context.Context) (bool, error)
}

type Grants interface {
	// GetGrant returns the scope grant for an identity on a tenant.
	GetGrant(ctx context.Context, tenantID, identityID string) (domain.Grant, error)

	// CreateGrant inserts a new grant.
	CreateGrant(ctx context.Context, g domain.Grant) error

	// UpdateGrantScopes replaces the granted scopes.
	UpdateGrantScopes(ctx context.Context, grantID string, scopes []string) error

	// DeleteGrant removes the grant, revoking future issuance (already
	// issued tokens run to expiry).
	DeleteGrant(ctx context.Context, grantID string) error
}
