package domain

import "time"

// Identity is an account that can authenticate. Usernames are unique per
// tenant, not globally.
type Identity struct {
	ID           string
	TenantID     string
	Username     string
	PasswordHash string // argon2 encoded
	RoleMask     uint64 // bitmask resolved to role names via RoleMap
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
