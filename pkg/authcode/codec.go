// Package authcode encodes authorization codes as self-contained opaque
// strings, so the server keeps no per-code state between the authorize and
// token endpoints.
//
// Wire form:
//
//	urn:phoenix:code:<correlator>:<payload>:<challenge>
//
// The payload is a base64url (no padding) join of tenant, username, scope,
// expiry epoch and redirect URI. The PKCE challenge rides alongside it
// sealed with ChaCha20-Poly1305, so a caller cannot mint a code that passes
// verifier checks without the server's key.
package authcode

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/phoenixiam/phoenix/pkg/cryptox"
)

// Prefix marks every authorization code this codec produces.
const Prefix = "urn:phoenix:code:"

var (
	// ErrFormat reports a code that is structurally not ours. Safe to
	// log; carries nothing secret.
	ErrFormat = errors.New("authcode: malformed authorization code")

	// ErrSecurity reports a code that parsed but failed a cryptographic
	// check: bad seal, or a PKCE verifier that does not match. Callers
	// must not tell the two apart on the wire.
	ErrSecurity = errors.New("authcode: security check failed")
)

// Payload is the grant state carried inside an authorization code.
type Payload struct {
	Tenant      string
	Username    string
	Scope       string
	ExpiresAt   time.Time
	RedirectURI string
}

// Expired reports whether the code's validity window has passed. The codec
// itself never enforces this; the exchange flow decides when expiry matters.
func (p Payload) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Codec seals and opens authorization codes with a fixed ChaCha20-Poly1305
// key. Safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// New builds a Codec from a 32-byte key.
func New(key []byte) (*Codec, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("authcode: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// NewEphemeral builds a Codec with a random key that lives only as long as
// the process. Codes become undecodable on restart, which for a two minute
// validity window is an acceptable trade against key management.
func NewEphemeral() (*Codec, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("authcode: generate key: %w", err)
	}
	return New(key)
}

// Encode seals the payload and PKCE challenge into an opaque code string.
// The challenge is the base64url SHA-256 digest the client sent to the
// authorize endpoint.
func (c *Codec) Encode(p Payload, challenge string) (string, error) {
	correlator, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("authcode: generate correlator: %w", err)
	}

	plain := strings.Join([]string{
		p.Tenant,
		p.Username,
		p.Scope,
		strconv.FormatInt(p.ExpiresAt.Unix(), 10),
		p.RedirectURI,
	}, ":")
	payload := base64.RawURLEncoding.EncodeToString([]byte(plain))

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("authcode: generate nonce: %w", err)
	}

	// Sealed challenge travels as ciphertext then nonce.
	sealed := c.aead.Seal(nil, nonce, []byte(challenge), nil)
	sealed = append(sealed, nonce...)

	return Prefix + correlator +
		":" + payload +
		":" + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a code and checks the PKCE verifier against the sealed
// challenge. Expiry is reported through the returned payload, not enforced
// here.
func (c *Codec) Decode(code, verifier string) (Payload, error) {
	rest, ok := strings.CutPrefix(code, Prefix)
	if !ok {
		return Payload{}, ErrFormat
	}

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return Payload{}, ErrFormat
	}

	// Seal check first: a code that fails the AEAD carries nothing worth
	// parsing.
	challenge, err := c.openChallenge(parts[2])
	if err != nil {
		return Payload{}, err
	}

	payload, err := decodePayload(parts[1])
	if err != nil {
		return Payload{}, err
	}

	digest := sha256.Sum256([]byte(verifier))
	derived := base64.RawURLEncoding.EncodeToString(digest[:])
	if subtle.ConstantTimeCompare([]byte(derived), challenge) != 1 {
		return Payload{}, ErrSecurity
	}

	return payload, nil
}

// Correlator extracts the random correlation id from a code without
// decrypting anything, for log lines about a specific grant.
func Correlator(code string) (string, bool) {
	rest, ok := strings.CutPrefix(code, Prefix)
	if !ok {
		return "", false
	}
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

func decodePayload(encoded string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrFormat
	}

	// Limit 5 keeps colons inside the redirect URI intact.
	fields := strings.SplitN(string(raw), ":", 5)
	if len(fields) != 5 {
		return Payload{}, ErrFormat
	}

	epoch, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Payload{}, ErrFormat
	}

	return Payload{
		Tenant:      fields[0],
		Username:    fields[1],
		Scope:       fields[2],
		ExpiresAt:   time.Unix(epoch, 0),
		RedirectURI: fields[4],
	}, nil
}

// openChallenge unseals the challenge blob. Anything short of a valid seal
// is a security failure, not a format one, so forgeries and truncations are
// indistinguishable from a bad tag.
func (c *Codec) openChallenge(encoded string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrSecurity
	}
	if len(sealed) < chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, ErrSecurity
	}

	split := len(sealed) - chacha20poly1305.NonceSize
	ciphertext, nonce := sealed[:split], sealed[split:]

	challenge, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrSecurity
	}
	return challenge, nil
}
