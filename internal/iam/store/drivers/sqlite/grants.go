package sqlite

import (
	"context"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
)

type grantsRepo struct {
	db querier
}

func (r *grantsRepo) GetGrant(ctx context.Context, tenantID, identityID string) (domain.Grant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, identity_id, scopes, created_at, updated_at
		 FROM grants WHERE tenant_id = ? AND identity_id = ?`,
		tenantID, identityID)

	var g domain.Grant
	var scopes string
	err := row.Scan(&g.ID, &g.TenantID, &g.IdentityID, &scopes, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return domain.Grant{}, mapNotFound(err)
	}
	g.Scopes = splitScopes(scopes)
	return g, nil
}

func (r *grantsRepo) CreateGrant(ctx context.Context, g domain.Grant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO grants (id, tenant_id, identity_id, scopes)
		 VALUES (?, ?, ?, ?)`,
		g.ID, g.TenantID, g.IdentityID, joinScopes(g.Scopes))
	return mapConstraint(err)
}

func (r *grantsRepo) UpdateGrantScopes(ctx context.Context, grantID string, scopes []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE grants SET scopes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		joinScopes(scopes), grantID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *grantsRepo) DeleteGrant(ctx context.Context, grantID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE id = ?`, grantID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
