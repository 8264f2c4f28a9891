package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/authcode"
	"github.com/phoenixiam/phoenix/pkg/bruteforce"
	"github.com/phoenixiam/phoenix/pkg/cryptox"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// DefaultCodeTTL is the authorization-code validity window.
const DefaultCodeTTL = 2 * time.Minute

// dummyHash keeps password verification running for unknown accounts, so an
// attacker cannot tell "no such user" from "wrong password" by timing.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// AuthenticateService runs the interactive login leg of the authorization
// code flow: credential check behind the brute-force guard, grant lookup,
// scope negotiation and code minting.
type AuthenticateService struct {
	Store   store.Store
	Guard   *bruteforce.Guard
	Codes   *authcode.Codec
	CodeTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// LoginRequest carries the validated form fields plus the caller's address
// for guard bookkeeping.
type LoginRequest struct {
	TenantID       string
	Username       string
	Password       string
	RequestedScope string
	RedirectURI    string
	CodeChallenge  string
	ClientAddr     string
}

func (s *AuthenticateService) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthenticateService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

// Login authenticates the user and returns an authorization code bound to
// the negotiated scope and the PKCE challenge.
//
// Returns:
//   - (code, nil) on success
//   - ErrTooManyAttempts when the guard has blocked the caller
//   - ErrInvalidTenant when the tenant or redirect URI does not check out
//   - ErrInvalidCredentials for unknown user and wrong password alike
//   - ErrAccessDenied when the identity holds no grant for the tenant
//   - ErrInvalidScope when the negotiated scope comes up empty
func (s *AuthenticateService) Login(ctx context.Context, req LoginRequest) (string, error) {
	log := slogx.FromContext(ctx)

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return "", ErrInvalidCredentials
	}

	if err := s.Guard.Check(req.ClientAddr, username); err != nil {
		return "", ErrTooManyAttempts
	}

	// Re-validate the tenant leg of the hand-off; the cookie is opaque to
	// the browser but not trusted by us.
	tenant, err := s.Store.Tenants().GetTenantByID(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidTenant
		}
		return "", err
	}
	if req.RedirectURI != tenant.RedirectURI {
		log.Warn("login redirect_uri does not match tenant registration",
			"tenant", tenant.ID)
		return "", ErrInvalidTenant
	}

	ident, lookupErr := s.Store.Identities().GetIdentityByUsername(ctx, tenant.ID, username)
	if lookupErr != nil && !errors.Is(lookupErr, store.ErrNotFound) {
		return "", lookupErr
	}

	hash := dummyHash
	if lookupErr == nil {
		hash = ident.PasswordHash
	}

	if cryptox.VerifyPassword(req.Password, hash) != nil || lookupErr != nil {
		// Delay and tally regardless of which half failed.
		if err := s.Guard.RegisterFailure(ctx, req.ClientAddr, username); err != nil {
			return "", err
		}
		return "", ErrInvalidCredentials
	}

	s.Guard.ClearOnSuccess(req.ClientAddr, username)

	grant, err := s.Store.Grants().GetGrant(ctx, tenant.ID, ident.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("authenticated identity holds no grant",
				"tenant", tenant.ID)
			return "", ErrAccessDenied
		}
		return "", err
	}

	scope := IntersectScopes(strings.Join(grant.Scopes, " "), req.RequestedScope)
	if scope == "" {
		return "", ErrInvalidScope
	}

	code, err := s.Codes.Encode(authcode.Payload{
		Tenant:      tenant.ID,
		Username:    ident.Username,
		Scope:       scope,
		ExpiresAt:   s.clock().Add(s.codeTTL()),
		RedirectURI: req.RedirectURI,
	}, req.CodeChallenge)
	if err != nil {
		return "", err
	}

	if corr, ok := authcode.Correlator(code); ok {
		log.Info("authorization code issued",
			"tenant", tenant.ID,
			"correlator", corr,
		)
	}
	return code, nil
}
