package authsdk

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenRequest is the body of POST /v1/tokens. It may also be sent as a form.
type TokenRequest struct {
	ClientID string `json:"client_id"`
	Subject  string `json:"subject"`
}

// RefreshRequest is the body of POST /v1/tokens/refresh.
type RefreshRequest struct {
	ClientID     string `json:"client_id"`
	RefreshToken string `json:"refresh_token"`
}

// IntrospectRequest is the body of POST /v1/tokens/introspect.
type IntrospectRequest struct {
	ClientID string `json:"client_id"`
	Token    string `json:"token"`
}

// TokenResponse is a freshly minted token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// TokenType is the tenant's configured label, "bearer" unless set.
	TokenType string `json:"token_type"`

	// JTI is the id of the access token. The refresh token's ati claim
	// carries the same value.
	JTI string `json:"jti"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// AdditionalInfo holds tenant specific facts about the subject that are
	// not embedded in either token.
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Introspection reasons for inactive tokens.
const (
	ReasonExpired           = "expired"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonMalformed         = "malformed"
)

// IntrospectionResponse reports whether a token is valid for a client and,
// when it is, what it says. An inactive token carries a Reason instead.
type IntrospectionResponse struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`

	Subject   string         `json:"sub,omitempty"`
	ClientID  string         `json:"client_id,omitempty"`
	JTI       string         `json:"jti,omitempty"`
	IssuedAt  int64          `json:"iat,omitempty"`
	ExpiresAt int64          `json:"exp,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is the per-dependency part of /readyz.
type HealthChecks struct {
	// Database covers the policy store, and the Redis cache in front of it
	// when one is configured.
	Database string `json:"database"`

	// Strategies reports how many tenants have a claim strategy.
	Strategies string `json:"strategies"`
}
