package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phoenixiam/phoenix/pkg/bruteforce"
)

// fastGuard keeps the real limits but shrinks the punitive delays so tests
// do not actually sleep.
func fastGuard() *bruteforce.Guard {
	return bruteforce.New(bruteforce.Config{
		BaseDelay: time.Nanosecond,
		MaxDelay:  time.Nanosecond,
	})
}

func newAuthFixture(t *testing.T) (*AuthenticateService, *TokenService) {
	t.Helper()
	ts, s, _ := newFixture(t)
	as := &AuthenticateService{
		Store: s,
		Guard: fastGuard(),
		Codes: ts.Codes,
	}
	return as, ts
}

func loginReq() LoginRequest {
	return LoginRequest{
		TenantID:       testTenant,
		Username:       testUser,
		Password:       testPassword,
		RequestedScope: "openid profile email",
		RedirectURI:    testRedirect,
		CodeChallenge:  s256("login-verifier"),
		ClientAddr:     "203.0.113.7",
	}
}

func TestLogin_IssuesRedeemableCode(t *testing.T) {
	as, ts := newAuthFixture(t)
	ctx := context.Background()

	code, err := as.Login(ctx, loginReq())
	require.NoError(t, err)

	// The code must round-trip through the token exchange with the matching
	// PKCE verifier and redirect URI.
	pair, err := ts.ExchangeAuthorizationCode(ctx, code, "login-verifier", testRedirect)
	require.NoError(t, err)
	require.Equal(t, "openid profile", pair.Scope,
		"scope narrowed to the grant, grant order")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	as, _ := newAuthFixture(t)
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		req := loginReq()
		req.Password = "nope"
		_, err := as.Login(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		req := loginReq()
		req.Username = "mallory"
		_, err := as.Login(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("empty password", func(t *testing.T) {
		req := loginReq()
		req.Password = ""
		_, err := as.Login(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogin_TenantValidation(t *testing.T) {
	as, _ := newAuthFixture(t)
	ctx := context.Background()

	t.Run("unknown tenant", func(t *testing.T) {
		req := loginReq()
		req.TenantID = "nowhere"
		_, err := as.Login(ctx, req)
		require.ErrorIs(t, err, ErrInvalidTenant)
	})

	t.Run("redirect mismatch", func(t *testing.T) {
		req := loginReq()
		req.RedirectURI = "https://evil.example/cb"
		_, err := as.Login(ctx, req)
		require.ErrorIs(t, err, ErrInvalidTenant)
	})
}

func TestLogin_NoGrantIsAccessDenied(t *testing.T) {
	as, _ := newAuthFixture(t)
	ctx := context.Background()

	ident, err := as.Store.Identities().GetIdentityByUsername(ctx, testTenant, testUser)
	require.NoError(t, err)
	g, err := as.Store.Grants().GetGrant(ctx, testTenant, ident.ID)
	require.NoError(t, err)
	require.NoError(t, as.Store.Grants().DeleteGrant(ctx, g.ID))

	_, err = as.Login(ctx, loginReq())
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestLogin_EmptyScopeIntersection(t *testing.T) {
	as, _ := newAuthFixture(t)

	req := loginReq()
	req.RequestedScope = "email offline_access"
	_, err := as.Login(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestLogin_GuardBlocksAfterRepeatedFailures(t *testing.T) {
	as, _ := newAuthFixture(t)
	ctx := context.Background()

	bad := loginReq()
	bad.Password = "nope"
	for i := 0; i < 5; i++ {
		_, err := as.Login(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the correct password is refused while the block stands.
	_, err := as.Login(ctx, loginReq())
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestLogin_SuccessResetsGuard(t *testing.T) {
	as, _ := newAuthFixture(t)
	ctx := context.Background()

	bad := loginReq()
	bad.Password = "nope"
	for i := 0; i < 4; i++ {
		_, err := as.Login(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := as.Login(ctx, loginReq())
	require.NoError(t, err)

	// The slate is clean again; one more failure does not trip the block.
	_, err = as.Login(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = as.Login(ctx, loginReq())
	require.NoError(t, err)
}
