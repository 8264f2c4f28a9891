package http

import (
	"net/http"

	"github.com/phoenixiam/phoenix/pkg/httpx"
	"github.com/phoenixiam/phoenix/pkg/keyring"
)

// JWKSHandler exposes the verification keys for resource servers.
func JWKSHandler(ring *keyring.Ring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, ring.PublicJWKS())
	}
}
