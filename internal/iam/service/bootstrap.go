package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/cryptox"
	"github.com/phoenixiam/phoenix/pkg/idx"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// BootstrapData is the first-run seed: one tenant, one admin identity and
// the grant joining them.
type BootstrapData struct {
	TenantID      string
	TenantName    string
	RedirectURI   string
	Scopes        []string
	AdminUsername string
	AdminPassword string
	AdminRoleMask uint64
}

// BootstrapService seeds an empty store so a fresh deployment has something
// to log into. It never touches a store that already holds data.
type BootstrapService struct {
	Store store.Store
}

// IsBootstrapped reports whether the store already contains any tenant or
// identity.
func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	tenantsEmpty, err := s.Store.Tenants().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	identitiesEmpty, err := s.Store.Identities().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !tenantsEmpty || !identitiesEmpty, nil
}

// Seed creates the bootstrap tenant, admin identity and grant in a single
// transaction. A no-op when the store is already populated or when no
// bootstrap data is configured.
func (s *BootstrapService) Seed(ctx context.Context, data BootstrapData) error {
	l := slogx.FromContext(ctx)

	if data.TenantID == "" || data.AdminUsername == "" || data.AdminPassword == "" {
		l.Debug("bootstrap seed not configured, skipping")
		return nil
	}

	bootstrapped, err := s.IsBootstrapped(ctx)
	if err != nil {
		return err
	}
	if bootstrapped {
		return nil
	}

	passHash, err := cryptox.HashPassword(data.AdminPassword)
	if err != nil {
		return err
	}

	name := data.TenantName
	if name == "" {
		name = data.TenantID
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		tenant := domain.Tenant{
			ID:          data.TenantID,
			Name:        name,
			RedirectURI: data.RedirectURI,
			Scopes:      data.Scopes,
			Protected:   true,
		}
		if err := tx.Tenants().CreateTenant(ctx, tenant); err != nil {
			return err
		}

		admin := domain.Identity{
			ID:           idx.New().String(),
			TenantID:     tenant.ID,
			Username:     data.AdminUsername,
			PasswordHash: passHash,
			RoleMask:     data.AdminRoleMask,
		}
		if err := tx.Identities().CreateIdentity(ctx, admin); err != nil {
			return err
		}

		return tx.Grants().CreateGrant(ctx, domain.Grant{
			ID:         idx.New().String(),
			TenantID:   tenant.ID,
			IdentityID: admin.ID,
			Scopes:     data.Scopes,
		})
	})
	if err != nil {
		return err
	}

	l.Info("bootstrap seed applied",
		slog.String("tenant", data.TenantID),
		slog.String("admin", data.AdminUsername),
		slog.String("scopes", strings.Join(data.Scopes, " ")),
	)
	return nil
}
