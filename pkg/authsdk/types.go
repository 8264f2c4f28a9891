package authsdk

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// Clients unmarshal error bodies into this shape.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from POST /oauth/token for both authorization_code and
// refresh_token grant types.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the JWT refresh token used to obtain new access tokens
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer" per OAuth2 spec
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// UserInfoResponse is returned from GET /v1/userinfo and echoes the
// authenticated caller's token claims.
type UserInfoResponse struct {
	Subject string   `json:"sub"`
	Tenant  string   `json:"tenant_id"`
	Scope   string   `json:"scope"`
	Roles   []string `json:"roles,omitempty"`
}

// HealthChecks reports the state of critical dependencies on /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// HealthResponse is the body of the health probe endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
