package keyring

import "encoding/base64"

// JWK is an Ed25519 public key in JSON Web Key format (RFC 7517).
// The ring only deals in OKP/Ed25519 keys, so the shape is fixed.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWKS returns the public halves of every not-yet-pruned keypair,
// ready to serve from the JWKS endpoint. Sign-expired pairs are included
// deliberately: resource servers still verify tokens they signed.
func (r *Ring) PublicJWKS() JWKS {
	pairs := r.VerificationKeys()

	set := JWKS{Keys: make([]JWK, 0, len(pairs))}
	for _, kp := range pairs {
		set.Keys = append(set.Keys, JWK{
			Kty: "OKP",
			Use: "sig",
			Alg: "EdDSA",
			Kid: kp.Kid,
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(kp.Public),
		})
	}
	return set
}
