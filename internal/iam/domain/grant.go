package domain

import "time"

// Grant records which scopes an identity may be issued for a tenant. No
// grant row means no access, regardless of what the login form asked for.
type Grant struct {
	ID         string
	TenantID   string
	IdentityID string
	Scopes     []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
