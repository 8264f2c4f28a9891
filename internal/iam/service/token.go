package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/authcode"
	"github.com/phoenixiam/phoenix/pkg/jwtx"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// RefreshTokenTTL is deliberately not configurable: refresh tokens are
// stateless and non-revocable, so their lifetime stays short and fixed.
const RefreshTokenTTL = 3 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidScope       = errors.New("invalid_scope")
	ErrInvalidGrant       = errors.New("invalid_grant")
	ErrAccessDenied       = errors.New("access_denied")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
)

// TokenService mints and validates the engine's JWTs and redeems grants for
// token pairs. Roles are resolved from the store at every issuance; they are
// never trusted from an inbound token.
type TokenService struct {
	Store     store.Store
	Codec     *jwtx.Codec
	Codes     *authcode.Codec
	RoleMap   domain.RoleMap
	Issuer    string
	Audiences []string
	AccessTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (s *TokenService) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueAccess mints a short-lived access token.
func (s *TokenService) IssueAccess(tenantID, subject, scope string, roles []string) (string, error) {
	now := s.clock()
	return s.Codec.Sign(jwtx.Claims{
		Issuer:    s.Issuer,
		Subject:   subject,
		Audience:  s.Audiences,
		TenantID:  tenantID,
		UPN:       subject,
		Scope:     NormalizeScope(scope),
		Roles:     roles,
		TokenType: jwtx.TokenTypeAccess,
		ID:        jwtx.NewJTI(),
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(s.AccessTTL),
	})
}

// IssueRefresh mints a refresh token. It carries no roles; those are
// re-resolved when the token is redeemed.
func (s *TokenService) IssueRefresh(tenantID, subject, scope string) (string, error) {
	now := s.clock()
	return s.Codec.Sign(jwtx.Claims{
		Issuer:    s.Issuer,
		Subject:   subject,
		Audience:  s.Audiences,
		TenantID:  tenantID,
		UPN:       subject,
		Scope:     NormalizeScope(scope),
		TokenType: jwtx.TokenTypeRefresh,
		ID:        jwtx.NewJTI(),
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	})
}

// Validate verifies a token of the expected type and returns its claims.
func (s *TokenService) Validate(token string, want jwtx.TokenType) (*jwtx.Claims, error) {
	return s.Codec.Verify(token, want)
}

// ValidateAccess is Validate fixed to access tokens; it satisfies the
// bearer middleware's validator interface.
func (s *TokenService) ValidateAccess(token string) (*jwtx.Claims, error) {
	return s.Codec.Verify(token, jwtx.TokenTypeAccess)
}

// IssuePair mints an access+refresh pair for a subject, resolving roles
// from the store at issuance time.
func (s *TokenService) IssuePair(ctx context.Context, tenantID, username, scope string) (*domain.TokenPair, error) {
	ident, err := s.Store.Identities().GetIdentityByUsername(ctx, tenantID, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The account vanished between grant and redemption.
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	scope = NormalizeScope(scope)
	roles := s.RoleMap.Resolve(ident.RoleMask)

	access, err := s.IssueAccess(tenantID, username, scope, roles)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefresh(tenantID, username, scope)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.AccessTTL.Seconds()),
		Scope:        scope,
	}, nil
}

// ExchangeAuthorizationCode implements the OAuth2 authorization_code grant.
// Every way a code can be bad collapses to ErrInvalidGrant on the wire; the
// distinction lives only in the logs.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	code, codeVerifier, redirectURI string,
) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	payload, err := s.Codes.Decode(code, codeVerifier)
	if err != nil {
		if corr, ok := authcode.Correlator(code); ok {
			l.Info("authorization code rejected", slog.String("correlator", corr), "err", err)
		}
		return nil, ErrInvalidGrant
	}

	if redirectURI != payload.RedirectURI {
		l.Info("authorization code redirect_uri mismatch")
		return nil, ErrInvalidGrant
	}

	// The codec leaves expiry to us so that decoding stays policy-free.
	if payload.Expired(s.clock()) {
		return nil, ErrInvalidGrant
	}

	return s.IssuePair(ctx, payload.Tenant, payload.Username, payload.Scope)
}

// ExchangeRefreshToken implements the OAuth2 refresh_token grant. A fresh
// pair is minted with the same scope; roles come from the store, not the
// inbound token.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, raw string) (*domain.TokenPair, error) {
	claims, err := s.Codec.Verify(raw, jwtx.TokenTypeRefresh)
	if err != nil {
		slogx.FromContext(ctx).Info("refresh token rejected", "err", err)
		return nil, ErrInvalidGrant
	}

	return s.IssuePair(ctx, claims.TenantID, claims.Subject, claims.Scope)
}
