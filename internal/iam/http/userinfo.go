package http

import (
	"net/http"

	"github.com/phoenixiam/phoenix/pkg/authsdk"
	"github.com/phoenixiam/phoenix/pkg/httpx"
)

// UserInfoHandler echoes the authenticated caller's claims. The bearer
// middleware has already validated the token and populated the context.
type UserInfoHandler struct{}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth, ok := httpx.AuthFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	response := authsdk.UserInfoResponse{
		Subject: auth.Subject,
		Tenant:  auth.Tenant,
		Scope:   auth.Scope,
		Roles:   auth.Roles,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
