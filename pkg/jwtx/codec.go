package jwtx

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phoenixiam/phoenix/pkg/keyring"
)

// DefaultRolesClaim is the claim name roles are published under when the
// deployment does not override it.
const DefaultRolesClaim = "groups"

// DefaultLeeway absorbs clock skew between the issuer and its verifiers
// when checking exp, nbf and iat.
const DefaultLeeway = 60 * time.Second

// Codec signs and verifies tokens against a rotating key ring. The zero
// value is not usable; construct with NewCodec.
type Codec struct {
	ring       *keyring.Ring
	issuer     string
	audiences  []string
	rolesClaim string
	leeway     time.Duration

	now func() time.Time
}

// CodecOptions configures a Codec. Zero fields fall back to defaults;
// Issuer and Audiences left empty disable the corresponding check.
type CodecOptions struct {
	Issuer     string
	Audiences  []string
	RolesClaim string
	Leeway     time.Duration
}

// NewCodec builds a Codec over ring.
func NewCodec(ring *keyring.Ring, opts CodecOptions) *Codec {
	if opts.RolesClaim == "" {
		opts.RolesClaim = DefaultRolesClaim
	}
	if opts.Leeway <= 0 {
		opts.Leeway = DefaultLeeway
	}
	return &Codec{
		ring:       ring,
		issuer:     opts.Issuer,
		audiences:  opts.Audiences,
		rolesClaim: opts.RolesClaim,
		leeway:     opts.Leeway,
		now:        time.Now,
	}
}

// Sign serializes claims into a compact EdDSA JWT using the ring's current
// signing key. A keyring.ErrKeyUnavailable from the ring passes through
// unwrapped so callers can treat it as an internal fault.
func (c *Codec) Sign(claims Claims) (string, error) {
	kp, err := c.ring.SigningKey()
	if err != nil {
		return "", err
	}

	mc := jwt.MapClaims{
		"iss":        claims.Issuer,
		"sub":        claims.Subject,
		"upn":        claims.UPN,
		"tenant_id":  claims.TenantID,
		"scope":      claims.Scope,
		"token_type": string(claims.TokenType),
		"jti":        claims.ID,
		"iat":        claims.IssuedAt.Unix(),
		"nbf":        claims.NotBefore.Unix(),
		"exp":        claims.ExpiresAt.Unix(),
	}
	if len(claims.Audience) > 0 {
		mc["aud"] = claims.Audience
	}
	if len(claims.Roles) > 0 {
		mc[c.rolesClaim] = claims.Roles
	}

	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, mc)
	t.Header["kid"] = kp.Kid

	signed, err := t.SignedString(kp.Private)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a compact JWT, requiring the given token
// type. Checks run in a fixed order so each failure surfaces as exactly one
// taxonomy error: signature and structure first, then exp, nbf, iat,
// issuer, audience and finally token type.
func (c *Codec) Verify(tokenStr string, want TokenType) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		// Time and issuer checks are done by hand below so the error
		// taxonomy stays ours, not the library's.
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		kp, err := c.ring.VerificationKey(kid)
		if err != nil {
			return nil, err
		}
		return kp.Public, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	claims, err := c.claimsFromMap(mc)
	if err != nil {
		return nil, err
	}

	now := c.now()
	// exp is mandatory; a token without one would never stop validating.
	if claims.ExpiresAt.IsZero() {
		return nil, ErrExpired
	}
	if now.After(claims.ExpiresAt.Add(c.leeway)) {
		return nil, ErrExpired
	}
	if !claims.NotBefore.IsZero() && now.Before(claims.NotBefore.Add(-c.leeway)) {
		return nil, ErrNotYetValid
	}
	if !claims.IssuedAt.IsZero() && now.Add(c.leeway).Before(claims.IssuedAt) {
		return nil, ErrBadIssueTime
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, ErrBadIssuer
	}
	if len(c.audiences) > 0 {
		found := false
		for _, aud := range c.audiences {
			if slices.Contains(claims.Audience, aud) {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrBadAudience
		}
	}
	if claims.TokenType != want {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

// claimsFromMap lifts the raw claim map into the typed form. Missing
// optional claims zero out; structurally wrong values are malformed.
func (c *Codec) claimsFromMap(mc jwt.MapClaims) (*Claims, error) {
	claims := &Claims{}

	var ok bool
	if claims.Issuer, ok = optionalString(mc, "iss"); !ok {
		return nil, ErrMalformed
	}
	if claims.Subject, ok = optionalString(mc, "sub"); !ok {
		return nil, ErrMalformed
	}
	if claims.UPN, ok = optionalString(mc, "upn"); !ok {
		return nil, ErrMalformed
	}
	if claims.TenantID, ok = optionalString(mc, "tenant_id"); !ok {
		return nil, ErrMalformed
	}
	if claims.Scope, ok = optionalString(mc, "scope"); !ok {
		return nil, ErrMalformed
	}
	if claims.ID, ok = optionalString(mc, "jti"); !ok {
		return nil, ErrMalformed
	}

	tt, ok := optionalString(mc, "token_type")
	if !ok {
		return nil, ErrMalformed
	}
	claims.TokenType = TokenType(tt)

	aud, err := mc.GetAudience()
	if err != nil {
		return nil, ErrMalformed
	}
	claims.Audience = aud

	if claims.Roles, ok = optionalStrings(mc, c.rolesClaim); !ok {
		return nil, ErrMalformed
	}

	if claims.IssuedAt, ok = optionalTime(mc, "iat"); !ok {
		return nil, ErrMalformed
	}
	if claims.NotBefore, ok = optionalTime(mc, "nbf"); !ok {
		return nil, ErrMalformed
	}
	if claims.ExpiresAt, ok = optionalTime(mc, "exp"); !ok {
		return nil, ErrMalformed
	}

	return claims, nil
}

func optionalString(mc jwt.MapClaims, key string) (string, bool) {
	raw, present := mc[key]
	if !present {
		return "", true
	}
	s, ok := raw.(string)
	return s, ok
}

func optionalStrings(mc jwt.MapClaims, key string) ([]string, bool) {
	raw, present := mc[key]
	if !present {
		return nil, true
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func optionalTime(mc jwt.MapClaims, key string) (time.Time, bool) {
	raw, present := mc[key]
	if !present {
		return time.Time{}, true
	}
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	default:
		return time.Time{}, false
	}
}

// mapParseError folds the library's parse errors into the package taxonomy.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, keyring.ErrUnknownKey):
		return ErrUnknownKey
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, keyring.ErrKeyUnavailable):
		return err
	default:
		return ErrMalformed
	}
}
