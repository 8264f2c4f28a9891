package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
	sqlitestore "github.com/phoenixiam/phoenix/internal/iam/store/drivers/sqlite"
	"github.com/phoenixiam/phoenix/pkg/authcode"
	"github.com/phoenixiam/phoenix/pkg/cryptox"
	"github.com/phoenixiam/phoenix/pkg/idx"
	"github.com/phoenixiam/phoenix/pkg/jwtx"
	"github.com/phoenixiam/phoenix/pkg/keyring"
)

const (
	testTenant   = "acme"
	testRedirect = "https://app.acme.example/callback"
	testUser     = "alice"
	testPassword = "correct horse battery staple"
)

var testRoleMap = domain.RoleMap{1: "user", 2: "admin"}

// newFixture seeds an in-memory store with one tenant, one identity (mask
// user|admin) and a grant for "openid profile", and wires a TokenService
// over a fresh key ring.
func newFixture(t *testing.T) (*TokenService, *sqlitestore.Store, domain.Identity) {
	t.Helper()

	s, err := sqlitestore.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	ctx := context.Background()
	require.NoError(t, s.Tenants().CreateTenant(ctx, domain.Tenant{
		ID:          testTenant,
		Name:        "Acme Corp",
		RedirectURI: testRedirect,
		Scopes:      []string{"openid", "profile"},
	}))

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	ident := domain.Identity{
		ID:           idx.New().String(),
		TenantID:     testTenant,
		Username:     testUser,
		PasswordHash: hash,
		RoleMask:     3,
	}
	require.NoError(t, s.Identities().CreateIdentity(ctx, ident))
	require.NoError(t, s.Grants().CreateGrant(ctx, domain.Grant{
		ID:         idx.New().String(),
		TenantID:   testTenant,
		IdentityID: ident.ID,
		Scopes:     []string{"openid", "profile"},
	}))

	ring := keyring.New(2, time.Hour, 15*time.Minute)
	codec := jwtx.NewCodec(ring, jwtx.CodecOptions{
		Issuer:    "https://iam.test",
		Audiences: []string{"phoenix-api"},
	})
	codes, err := authcode.NewEphemeral()
	require.NoError(t, err)

	ts := &TokenService{
		Store:     s,
		Codec:     codec,
		Codes:     codes,
		RoleMap:   testRoleMap,
		Issuer:    "https://iam.test",
		Audiences: []string{"phoenix-api"},
		AccessTTL: 15 * time.Minute,
	}
	return ts, s, ident
}

func s256(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func mintCode(t *testing.T, ts *TokenService, verifier string, expiresAt time.Time) string {
	t.Helper()
	code, err := ts.Codes.Encode(authcode.Payload{
		Tenant:      testTenant,
		Username:    testUser,
		Scope:       "openid profile",
		ExpiresAt:   expiresAt,
		RedirectURI: testRedirect,
	}, s256(verifier))
	require.NoError(t, err)
	return code
}

func TestTokenService_IssuePair(t *testing.T) {
	ts, _, _ := newFixture(t)

	pair, err := ts.IssuePair(context.Background(), testTenant, testUser, "profile  openid profile")
	require.NoError(t, err)

	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int(ts.AccessTTL.Seconds()), pair.ExpiresIn)
	require.Equal(t, "profile openid", pair.Scope, "scope is normalized")

	claims, err := ts.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUser, claims.Subject)
	require.Equal(t, testUser, claims.UPN)
	require.Equal(t, testTenant, claims.TenantID)
	require.Equal(t, []string{"user", "admin"}, claims.Roles, "roles resolved from the store mask")
	require.NotEmpty(t, claims.ID)

	refresh, err := ts.Validate(pair.RefreshToken, jwtx.TokenTypeRefresh)
	require.NoError(t, err)
	require.Empty(t, refresh.Roles, "refresh tokens carry no roles")
	require.WithinDuration(t,
		refresh.IssuedAt.Add(RefreshTokenTTL), refresh.ExpiresAt, time.Second)
}

func TestTokenService_IssuePair_UnknownIdentity(t *testing.T) {
	ts, _, _ := newFixture(t)

	_, err := ts.IssuePair(context.Background(), testTenant, "ghost", "openid")
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestTokenService_ValidateAccess_RejectsRefresh(t *testing.T) {
	ts, _, _ := newFixture(t)

	pair, err := ts.IssuePair(context.Background(), testTenant, testUser, "openid")
	require.NoError(t, err)

	_, err = ts.ValidateAccess(pair.RefreshToken)
	require.ErrorIs(t, err, jwtx.ErrWrongTokenType)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	ts, _, _ := newFixture(t)
	ctx := context.Background()

	code := mintCode(t, ts, "verifier-1", time.Now().Add(2*time.Minute))

	pair, err := ts.ExchangeAuthorizationCode(ctx, code, "verifier-1", testRedirect)
	require.NoError(t, err)
	require.Equal(t, "openid profile", pair.Scope)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestExchangeAuthorizationCode_Failures(t *testing.T) {
	ts, _, _ := newFixture(t)
	ctx := context.Background()

	t.Run("wrong verifier", func(t *testing.T) {
		code := mintCode(t, ts, "right", time.Now().Add(2*time.Minute))
		_, err := ts.ExchangeAuthorizationCode(ctx, code, "wrong", testRedirect)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("expired code", func(t *testing.T) {
		code := mintCode(t, ts, "v", time.Now().Add(-time.Second))
		_, err := ts.ExchangeAuthorizationCode(ctx, code, "v", testRedirect)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("redirect mismatch", func(t *testing.T) {
		code := mintCode(t, ts, "v", time.Now().Add(2*time.Minute))
		_, err := ts.ExchangeAuthorizationCode(ctx, code, "v", "https://evil.example/cb")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("garbage code", func(t *testing.T) {
		_, err := ts.ExchangeAuthorizationCode(ctx, "not-a-code", "v", testRedirect)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestExchangeRefreshToken(t *testing.T) {
	ts, s, ident := newFixture(t)
	ctx := context.Background()

	pair, err := ts.IssuePair(ctx, testTenant, testUser, "openid profile")
	require.NoError(t, err)

	// Narrow the account's roles before redemption; the new access token
	// must reflect the store, not the old token.
	require.NoError(t, s.Identities().UpdateRoleMask(ctx, ident.ID, 1))

	next, err := ts.ExchangeRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "openid profile", next.Scope)

	claims, err := ts.ValidateAccess(next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, claims.Roles)
}

func TestExchangeRefreshToken_Failures(t *testing.T) {
	ts, s, ident := newFixture(t)
	ctx := context.Background()

	pair, err := ts.IssuePair(ctx, testTenant, testUser, "openid")
	require.NoError(t, err)

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := ts.ExchangeRefreshToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ts.ExchangeRefreshToken(ctx, "garbage")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("deleted identity", func(t *testing.T) {
		require.NoError(t, s.Identities().DeleteIdentity(ctx, ident.ID))
		_, err := ts.ExchangeRefreshToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}
