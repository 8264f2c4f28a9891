package domain

import "time"

// Tenant is a registered relying party. Its ID doubles as the OAuth2
// client_id presented on the authorize endpoint.
type Tenant struct {
	ID          string
	Name        string
	RedirectURI string // exact-match registered callback
	Scopes      []string
	Protected   bool // If true, tenant cannot be deleted (e.g., bootstrap tenant)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
