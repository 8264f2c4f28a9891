package sqlite

import (
	"context"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
)

type tenantsRepo struct {
	db querier
}

const tenantColumns = `id, name, redirect_uri, scopes, protected, created_at, updated_at`

func (r *tenantsRepo) scanTenant(row interface{ Scan(...any) error }) (domain.Tenant, error) {
	var t domain.Tenant
	var scopes string
	err := row.Scan(&t.ID, &t.Name, &t.RedirectURI, &scopes, &t.Protected, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, err
	}
	t.Scopes = splitScopes(scopes)
	return t, nil
}

func (r *tenantsRepo) GetTenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)

	t, err := r.scanTenant(row)
	if err != nil {
		return domain.Tenant{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tenantsRepo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		t, err := r.scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tenantsRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, redirect_uri, scopes, protected)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.RedirectURI, joinScopes(t.Scopes), t.Protected)
	return mapConstraint(err)
}

func (r *tenantsRepo) UpdateTenantRedirectURI(ctx context.Context, tenantID, redirectURI string) error {
	return r.update(ctx,
		`UPDATE tenants SET redirect_uri = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		redirectURI, tenantID)
}

func (r *tenantsRepo) UpdateTenantScopes(ctx context.Context, tenantID string, scopes []string) error {
	return r.update(ctx,
		`UPDATE tenants SET scopes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		joinScopes(scopes), tenantID)
}

func (r *tenantsRepo) DeleteTenant(ctx context.Context, tenantID string) error {
	return r.update(ctx, `DELETE FROM tenants WHERE id = ?`, tenantID)
}

func (r *tenantsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tenants`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

// update runs a statement that must touch exactly one row.
func (r *tenantsRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}
