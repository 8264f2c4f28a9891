// Package keyring maintains a rotating pool of Ed25519 signing keypairs.
//
// A keypair signs tokens only until its issuance expiry, but stays resolvable
// for verification until issuance expiry + token lifetime, so every token it
// could have signed outlives it by at most zero seconds. Expired pairs are
// pruned lazily on the signing path.
package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phoenixiam/phoenix/pkg/cryptox"
)

// DefaultPoolSize is the number of sign-capable pairs a Ring keeps unless
// configured otherwise.
const DefaultPoolSize = 3

var (
	// ErrKeyUnavailable reports that no signing key could be produced.
	// This only happens when key generation itself fails.
	ErrKeyUnavailable = errors.New("keyring: unable to provide a signing key")

	// ErrUnknownKey reports that no cached keypair matches the requested kid.
	// Expected for tokens signed by a since-pruned key; treat as an ordinary
	// invalid-token condition.
	ErrUnknownKey = errors.New("keyring: unknown kid")
)

// KeyPair is an Ed25519 signing keypair with its rotation bookkeeping.
type KeyPair struct {
	Kid            string
	Private        ed25519.PrivateKey
	Public         ed25519.PublicKey
	CreatedAt      time.Time
	IssuanceExpiry time.Time
}

// CanSign reports whether the pair may still sign new tokens.
func (kp *KeyPair) CanSign(now time.Time) bool {
	return !now.After(kp.IssuanceExpiry)
}

// Ring owns the keypair pool. All methods are safe for concurrent use; the
// pool is mutated lazily by both signing and verification lookups.
type Ring struct {
	mu   sync.Mutex
	keys map[string]*KeyPair

	size     int           // target number of sign-capable pairs
	keyTTL   time.Duration // signing lifetime per pair
	tokenTTL time.Duration // verification grace beyond signing expiry

	now func() time.Time
}

// New builds a Ring that keeps size sign-capable keypairs, each signing for
// keyTTL and verifiable for a further tokenTTL. The pool is filled on first
// use rather than eagerly.
func New(size int, keyTTL, tokenTTL time.Duration) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{
		keys:     make(map[string]*KeyPair),
		size:     size,
		keyTTL:   keyTTL,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// SigningKey prunes verification-expired pairs, tops the pool back up to the
// target size and returns a pair that may still sign. It fails only when key
// generation fails; callers should treat that as fatal for the request, not
// for the process.
func (r *Ring) SigningKey() (*KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)

	// Re-count under the same lock each iteration so a burst of callers
	// cannot grow the pool past the target.
	for r.signableCountLocked(now) < r.size {
		kp, err := r.generateLocked(now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		r.keys[kp.Kid] = kp
	}

	for _, kp := range r.keys {
		if kp.CanSign(now) {
			return kp, nil
		}
	}

	// Unreachable after a successful top-up.
	return nil, ErrKeyUnavailable
}

// VerificationKey resolves a keypair by kid. Pairs past their signing expiry
// remain resolvable until their verification expiry.
func (r *Ring) VerificationKey(kid string) (*KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kp, ok := r.keys[kid]; ok {
		return kp, nil
	}
	return nil, ErrUnknownKey
}

// VerificationKeys returns a snapshot of every not-yet-pruned keypair,
// for JWKS publishing.
func (r *Ring) VerificationKeys() []*KeyPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*KeyPair, 0, len(r.keys))
	for _, kp := range r.keys {
		out = append(out, kp)
	}
	return out
}

// Size returns the number of cached keypairs, including sign-expired ones
// still held for verification.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// pruneLocked drops every pair past its verification expiry, bookkeeping
// included, so the map cannot grow without bound.
func (r *Ring) pruneLocked(now time.Time) {
	for kid, kp := range r.keys {
		if now.After(kp.IssuanceExpiry.Add(r.tokenTTL)) {
			delete(r.keys, kid)
		}
	}
}

func (r *Ring) signableCountLocked(now time.Time) int {
	n := 0
	for _, kp := range r.keys {
		if kp.CanSign(now) {
			n++
		}
	}
	return n
}

func (r *Ring) generateLocked(now time.Time) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		Kid:            "phoenix-" + kid,
		Private:        priv,
		Public:         pub,
		CreatedAt:      now,
		IssuanceExpiry: now.Add(r.keyTTL),
	}, nil
}
