package domain

// TokenPair is what the token endpoint returns: a short-lived access token
// and a refresh token, both stateless JWTs.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    int    `json:"expires_in"`           // seconds until access expiry
	Scope        string `json:"scope,omitempty"`      // space-delimited
}
