package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/phoenixiam/phoenix/internal/iam/domain"
	"github.com/phoenixiam/phoenix/internal/iam/service"
	"github.com/phoenixiam/phoenix/pkg/authsdk"
	"github.com/phoenixiam/phoenix/pkg/httpx"
	"github.com/phoenixiam/phoenix/pkg/slogx"
)

// TokenHandler serves POST /oauth/token.
// Accepts application/x-www-form-urlencoded per RFC 6749.
type TokenHandler struct {
	TokenService *service.TokenService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	default:
		authsdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	code := strings.TrimSpace(form.Get("code"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))

	if code == "" || codeVerifier == "" || redirectURI == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeAuthorizationCode(ctx, code, codeVerifier, redirectURI)
	if err != nil {
		// Every code defect answers invalid_grant; the distinction is in
		// the logs only.
		if errors.Is(err, service.ErrInvalidGrant) {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("authorization_code grant failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	refresh := form.Get("refresh_token")
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, refresh)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGrant) {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("refresh grant failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokenResponse(w, pair)
}

func writeTokenResponse(w http.ResponseWriter, pair *domain.TokenPair) {
	response := authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		Scope:        pair.Scope,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
