package sqlite

import (
	"context"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
)

type identitiesRepo struct {
	db querier
}

const identityColumns = `id, tenant_id, username, password_hash, role_mask, created_at, updated_at`

func (r *identitiesRepo) scanIdentity(row interface{ Scan(...any) error }) (domain.Identity, error) {
	var ident domain.Identity
	var mask int64
	err := row.Scan(&ident.ID, &ident.TenantID, &ident.Username, &ident.PasswordHash,
		&mask, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return domain.Identity{}, err
	}
	ident.RoleMask = uint64(mask)
	return ident, nil
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)

	ident, err := r.scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) GetIdentityByUsername(ctx context.Context, tenantID, username string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE tenant_id = ? AND username = ?`,
		tenantID, username)

	ident, err := r.scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, ident domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, tenant_id, username, password_hash, role_mask)
		 VALUES (?, ?, ?, ?, ?)`,
		ident.ID, ident.TenantID, ident.Username, ident.PasswordHash, int64(ident.RoleMask))
	return mapConstraint(err)
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, identityID, newHash string) error {
	return r.update(ctx,
		`UPDATE identities SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, identityID)
}

func (r *identitiesRepo) UpdateRoleMask(ctx context.Context, identityID string, mask uint64) error {
	return r.update(ctx,
		`UPDATE identities SET role_mask = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		int64(mask), identityID)
}

func (r *identitiesRepo) DeleteIdentity(ctx context.Context, identityID string) error {
	return r.update(ctx, `DELETE FROM identities WHERE id = ?`, identityID)
}

func (r *identitiesRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM identities`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

func (r *identitiesRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}
