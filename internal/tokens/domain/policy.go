package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
)

// DefaultTokenType is used when a policy does not set one.
const DefaultTokenType = "bearer"

// MinTokenTTL is the shortest lifetime a policy may set. Token timestamps
// have second resolution, so anything shorter mints already expired tokens.
const MinTokenTTL = time.Second

var ErrInvalidPolicy = errors.New("domain: invalid client policy")

// ClientPolicy is how one tenant wants its tokens minted. EncryptedSecret is
// a cryptox.SecretCodec blob; the plaintext never lives on this struct.
type ClientPolicy struct {
	ClientID        string         `json:"client_id"`
	Algorithm       jwtx.Algorithm `json:"algorithm"`
	EncryptedSecret string         `json:"-"`
	AccessTokenTTL  time.Duration  `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration  `json:"refresh_token_ttl"`
	TokenType       string         `json:"token_type"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Validate checks the invariants a stored policy must hold.
func (p ClientPolicy) Validate() error {
	switch {
	case p.ClientID == "":
		return fmt.Errorf("%w: client id is empty", ErrInvalidPolicy)
	case p.EncryptedSecret == "":
		return fmt.Errorf("%w: %s has no secret", ErrInvalidPolicy, p.ClientID)
	case p.AccessTokenTTL < MinTokenTTL:
		return fmt.Errorf("%w: %s access token ttl must be at least %s", ErrInvalidPolicy, p.ClientID, MinTokenTTL)
	case p.RefreshTokenTTL < MinTokenTTL:
		return fmt.Errorf("%w: %s refresh token ttl must be at least %s", ErrInvalidPolicy, p.ClientID, MinTokenTTL)
	}
	if _, err := jwtx.ParseAlgorithm(p.Algorithm.String()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.ClientID, err)
	}
	return nil
}

// TokenTypeLabel is TokenType with the default applied.
func (p ClientPolicy) TokenTypeLabel() string {
	if p.TokenType == "" {
		return DefaultTokenType
	}
	return p.TokenType
}
