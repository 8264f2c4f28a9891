// Package jwtx signs and verifies the EdDSA tokens minted by the credential
// engine. Keys come from a keyring.Ring; the kid header ties each token back
// to the keypair that signed it.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// TokenType distinguishes access tokens from refresh tokens. It travels in
// the "token_type" claim so a refresh token can never be replayed as a
// bearer credential.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the flattened claim set carried by every token. The roles list
// is serialized under a configurable claim name, so it has no fixed JSON
// tag here; everything else maps one to one onto the wire form.
type Claims struct {
	Issuer   string
	Subject  string
	Audience []string

	// TenantID is the realm the subject authenticated against.
	TenantID string

	// UPN is the user principal name, typically identical to Subject.
	UPN string

	// Scope is the space-delimited granted scope string.
	Scope string

	// Roles are resolved role names, published under the configured
	// roles claim (default "groups").
	Roles []string

	TokenType TokenType

	ID        string // jti
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
