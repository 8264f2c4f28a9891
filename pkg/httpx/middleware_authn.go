package httpx

import (
	"net/http"
	"strings"

	"github.com/phoenixiam/phoenix/pkg/jwtx"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// AccessValidator verifies a bearer access token and returns its claims.
// Implemented by the token service; an interface here keeps the middleware
// free of service wiring.
type AccessValidator interface {
	ValidateAccess(token string) (*jwtx.Claims, error)
}

// BearerMiddleware authenticates requests with a bearer access token and
// threads the resulting AuthContext into the request context. Refresh
// tokens are rejected by the validator's token-type check.
func BearerMiddleware(v AccessValidator, realm string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, realm, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.ValidateAccess(raw)
			if err != nil {
				// One wire answer for every failure mode; the reason
				// stays in the logs.
				writeBearerError(w, realm, "token verification failed")
				log.Warn("bearer token rejected", "err", err)
				return
			}

			ctx = WithAuth(ctx, AuthContext{
				Subject: claims.Subject,
				Tenant:  claims.TenantID,
				Scope:   claims.Scope,
				Roles:   claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, realm, desc string) {
	w.Header().Set("WWW-Authenticate",
		`Bearer realm="`+realm+`", error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
