package domain

// RawClaims is what a claim strategy produces for one subject. Access and
// Refresh end up inside the signed tokens; Additional is only returned to the
// caller.
type RawClaims struct {
	Access     map[string]any
	Refresh    map[string]any
	Additional map[string]any
}

// IssuanceResult is what the token endpoint returns: a linked access and
// refresh token pair. The access token's jti equals JWTID and the refresh
// token's ati points back at it.
type IssuanceResult struct {
	AccessToken    string         `json:"access_token"`
	RefreshToken   string         `json:"refresh_token"`
	TokenType      string         `json:"token_type"`
	JWTID          string         `json:"jti"`
	ExpiresIn      int64          `json:"expires_in"` // seconds until the access token expires
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Introspection is the verified content of a token.
type Introspection struct {
	Active    bool           `json:"active"`
	Subject   string         `json:"sub,omitempty"`
	ClientID  string         `json:"client_id,omitempty"`
	JWTID     string         `json:"jti,omitempty"`
	IssuedAt  int64          `json:"iat,omitempty"`
	ExpiresAt int64          `json:"exp,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
}
