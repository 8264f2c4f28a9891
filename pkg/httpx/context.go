package httpx

import "context"

type ctxKey string

const ctxKeyAuth ctxKey = "auth"

// AuthContext is what the bearer middleware learned about the caller. It is
// derived entirely from a verified access token; handlers never reparse the
// token themselves.
type AuthContext struct {
	Subject string
	Tenant  string
	Scope   string
	Roles   []string
}

// WithAuth attaches auth to the context.
func WithAuth(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, ctxKeyAuth, auth)
}

// AuthFromContext returns the caller's AuthContext, if the request passed
// through the bearer middleware.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(ctxKeyAuth).(AuthContext)
	return auth, ok
}

func rolesFromCtx(ctx context.Context) []string {
	if auth, ok := AuthFromContext(ctx); ok {
		return auth.Roles
	}
	return nil
}

func scopesFromCtx(ctx context.Context) []string {
	if auth, ok := AuthFromContext(ctx); ok {
		return ParseSpaceDelimitedFields(auth.Scope)
	}
	return nil
}
