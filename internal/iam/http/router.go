package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phoenixiam/phoenix/internal/iam/service"
	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/httpx"
	"github.com/phoenixiam/phoenix/pkg/keyring"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	ring      *keyring.Ring
	realm     string
	version   string
	startTime time.Time
	logger    *slog.Logger

	store               store.Store
	TokenService        *service.TokenService
	AuthenticateService *service.AuthenticateService
}

func NewRouter(
	ring *keyring.Ring,
	realm, version string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		ring:      ring,
		realm:     realm,
		version:   version,
		startTime: time.Now(),
		store:     st,
		logger:    logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerUserInfo()
	r.registerTenants()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// bearer is the authentication gate shared by every protected route.
func (r *Router) bearer() httpx.Middleware {
	return httpx.BearerMiddleware(r.TokenService, r.realm)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		Store:        r.store,
		Authenticate: r.AuthenticateService,
	}

	// GET /authorize mostly just renders the login form.
	r.Mux.Handle("GET /authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /login/authorization carries credentials; rate limited by
	// IP + username on top of the in-process brute-force guard.
	r.Mux.Handle("POST /login/authorization",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /oauth/token - strict limit by IP across all grant types.
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.ring),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerUserInfo() {
	secured := httpx.Chain(&UserInfoHandler{},
		r.bearer(),
		httpx.RequireAnyScope("openid"),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /v1/userinfo", secured)
}

func (r *Router) registerTenants() {
	h := &TenantsHandler{Store: r.store}

	// The whole registry surface is admin-only; anything not listed here
	// stays unreachable.
	admin := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			r.bearer(),
			httpx.RequireAnyRole("admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/tenants", admin(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("POST /v1/tenants", admin(http.HandlerFunc(h.HandleCreate)))
	r.Mux.Handle("DELETE /v1/tenants/{id}", admin(http.HandlerFunc(h.HandleDelete)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.version),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.version, r.store, r.ring),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
