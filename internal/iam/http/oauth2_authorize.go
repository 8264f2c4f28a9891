package http

import (
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/phoenixiam/phoenix/internal/iam/service"
	"github.com/phoenixiam/phoenix/internal/iam/store"
	"github.com/phoenixiam/phoenix/pkg/authsdk"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// signInCookieName carries the validated tenant/scope/redirect triple from
// GET /authorize to POST /login/authorization. The browser treats it as
// opaque; the server never trusts it without re-checking the store.
const signInCookieName = "signInId"

//go:embed login.html
var loginPage string

var loginTemplate = template.Must(template.New("login").Parse(loginPage))

type loginPageData struct {
	TenantName    string
	CodeChallenge string
	State         string
	Error         string
}

// AuthorizeHandler serves the browser-facing leg of the authorization code
// flow: GET /authorize validates the client and hands off to the login page,
// POST /login/authorization authenticates and redirects back with a code.
type AuthorizeHandler struct {
	Store        store.Store
	Authenticate *service.AuthenticateService
}

// HandleGet validates the authorization request, binds the sign-in hand-off
// cookie and serves the login page.
//
// Per RFC 6749 section 3.1.2.3 errors in client_id or redirect_uri are
// reported to the user, never redirected; later errors redirect to the now
// validated redirect_uri.
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("client_id"))
	redirectURI := strings.TrimSpace(q.Get("redirect_uri"))
	if clientID == "" || redirectURI == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	tenant, err := h.Store.Tenants().GetTenantByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authsdk.ErrInvalidClient.WriteError(w)
			return
		}
		log.Error("tenant lookup failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	if redirectURI != tenant.RedirectURI {
		log.Warn("authorize redirect_uri does not match registration",
			"tenant", tenant.ID)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	state := q.Get("state")

	if q.Get("response_type") != "code" {
		redirectError(w, r, redirectURI, state, "unsupported_response_type", "")
		return
	}

	challenge := strings.TrimSpace(q.Get("code_challenge"))
	method := q.Get("code_challenge_method")
	if challenge == "" || (method != "" && method != "S256") {
		redirectError(w, r, redirectURI, state,
			"invalid_request", "code_challenge with method S256 is required")
		return
	}

	scope := strings.TrimSpace(q.Get("scope"))
	if scope == "" {
		scope = strings.Join(tenant.Scopes, " ")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     signInCookieName,
		Value:    encodeSignIn(tenant.ID, scope, redirectURI),
		Path:     "/login",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderLogin(w, http.StatusOK, loginPageData{
		TenantName:    tenant.Name,
		CodeChallenge: challenge,
		State:         state,
	})
}

// HandlePost authenticates the submitted credentials against the hand-off
// cookie and redirects back to the client with an authorization code.
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	cookie, err := r.Cookie(signInCookieName)
	if err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	tenantID, scope, redirectURI, ok := decodeSignIn(cookie.Value)
	if !ok {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	state := r.PostForm.Get("state")

	code, err := h.Authenticate.Login(ctx, service.LoginRequest{
		TenantID:       tenantID,
		Username:       r.PostForm.Get("username"),
		Password:       r.PostForm.Get("password"),
		RequestedScope: scope,
		RedirectURI:    redirectURI,
		CodeChallenge:  strings.TrimSpace(r.PostForm.Get("code_challenge")),
		ClientAddr:     clientAddr(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyAttempts):
			authsdk.ErrTooManyAttempts.WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			// Same page, same message, for unknown user and wrong password.
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			renderLogin(w, http.StatusUnauthorized, loginPageData{
				TenantName:    tenantID,
				CodeChallenge: r.PostForm.Get("code_challenge"),
				State:         state,
				Error:         "Invalid username or password.",
			})
		case errors.Is(err, service.ErrInvalidTenant):
			authsdk.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrAccessDenied):
			redirectError(w, r, redirectURI, state, "access_denied", "")
		case errors.Is(err, service.ErrInvalidScope):
			redirectError(w, r, redirectURI, state, "invalid_scope", "")
		default:
			log.Error("login failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	// The hand-off is spent; drop the cookie.
	http.SetCookie(w, &http.Cookie{
		Name:   signInCookieName,
		Path:   "/login",
		MaxAge: -1,
	})

	target, err := url.Parse(redirectURI)
	if err != nil {
		authsdk.ErrServerError.WriteError(w)
		return
	}
	params := target.Query()
	params.Set("code", code)
	if state != "" {
		params.Set("state", state)
	}
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

func renderLogin(w http.ResponseWriter, status int, data loginPageData) {
	w.WriteHeader(status)
	_ = loginTemplate.Execute(w, data)
}

func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state, code, desc string) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		authsdk.ErrServerError.WriteError(w)
		return
	}
	params := target.Query()
	params.Set("error", code)
	if desc != "" {
		params.Set("error_description", desc)
	}
	if state != "" {
		params.Set("state", state)
	}
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

// encodeSignIn packs the hand-off as tenant#scope$redirect, escaped to stay
// cookie-safe.
func encodeSignIn(tenant, scope, redirectURI string) string {
	return url.QueryEscape(tenant + "#" + scope + "$" + redirectURI)
}

func decodeSignIn(value string) (tenant, scope, redirectURI string, ok bool) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return "", "", "", false
	}
	tenant, rest, found := strings.Cut(raw, "#")
	if !found || tenant == "" {
		return "", "", "", false
	}
	scope, redirectURI, found = strings.Cut(rest, "$")
	if !found || redirectURI == "" {
		return "", "", "", false
	}
	return tenant, scope, redirectURI, true
}

func clientAddr(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
