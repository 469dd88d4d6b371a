package jwtx

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claim keys shared by every tenant. Anything else in a ClaimSet is
// tenant-specific and travels through untouched.
const (
	ClaimSubject   = "sub"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"

	// ClaimClientID identifies the tenant the token was minted for.
	ClaimClientID = "client_id"

	// ClaimJWTID is the unique id of the token itself.
	ClaimJWTID = "jti"

	// ClaimAccessTokenID is only present on refresh tokens and points back
	// at the jti of the access token minted in the same issuance.
	ClaimAccessTokenID = "ati"

	// DefaultRolesKey is where ExtractRoles looks unless told otherwise.
	DefaultRolesKey = "authorities"
)

// ClaimSet is everything a signed token carries. Subject and the two
// timestamps are lifted out of the payload so callers don't need to poke
// around a map for them; Claims holds the rest.
//
// A ClaimSet is built fresh for every signing operation and should be
// treated as immutable once handed to a Codec.
type ClaimSet struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Claims values are strings, []string or nested map[string]any.
	Claims map[string]any
}

// NewClaimSet builds a ClaimSet issued at now and expiring ttl later. Both
// timestamps are truncated to whole seconds, the resolution of the wire
// format, so a signed and re-parsed set compares equal to the original.
func NewClaimSet(subject string, claims map[string]any, now time.Time, ttl time.Duration) ClaimSet {
	iat := now.UTC().Truncate(time.Second)
	if ttl < 0 {
		ttl = 0
	}

	c := make(map[string]any, len(claims))
	maps.Copy(c, claims)

	return ClaimSet{
		Subject:   subject,
		IssuedAt:  iat,
		ExpiresAt: iat.Add(ttl.Truncate(time.Second)),
		Claims:    c,
	}
}

// String returns the value of a string claim, or "" when it is missing or
// not a string.
func (c ClaimSet) String(key string) string {
	s, _ := c.Claims[key].(string)
	return s
}

// Strings returns a collection claim. A lone string is promoted to a
// single element slice; anything else yields an empty, non-nil slice.
func (c ClaimSet) Strings(key string) []string {
	switch v := c.Claims[key].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return []string{}
	}
}

// ValidateExpiry reports ErrExpiredToken once now has reached ExpiresAt.
func (c ClaimSet) ValidateExpiry(now time.Time) error {
	if !now.Before(c.ExpiresAt) {
		return ErrExpiredToken
	}
	return nil
}

// mapClaims flattens the set into the payload document. The registered
// fields always win over same-named keys in Claims.
func (c ClaimSet) mapClaims() jwt.MapClaims {
	mc := make(jwt.MapClaims, len(c.Claims)+3)
	maps.Copy(mc, c.Claims)

	delete(mc, ClaimSubject)
	if c.Subject != "" {
		mc[ClaimSubject] = c.Subject
	}
	mc[ClaimIssuedAt] = jwt.NewNumericDate(c.IssuedAt)
	mc[ClaimExpiresAt] = jwt.NewNumericDate(c.ExpiresAt)
	return mc
}

// claimSetFromMap is the inverse of mapClaims. exp is mandatory, a token
// without one is malformed as far as we're concerned.
func claimSetFromMap(mc jwt.MapClaims) (ClaimSet, error) {
	sub, err := mc.GetSubject()
	if err != nil {
		return ClaimSet{}, ErrMalformedToken
	}
	iat, err := mc.GetIssuedAt()
	if err != nil {
		return ClaimSet{}, ErrMalformedToken
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return ClaimSet{}, ErrMalformedToken
	}

	cs := ClaimSet{
		Subject:   sub,
		ExpiresAt: exp.UTC(),
		Claims:    make(map[string]any, len(mc)),
	}
	if iat != nil {
		cs.IssuedAt = iat.UTC()
	}

	for k, v := range mc {
		switch k {
		case ClaimSubject, ClaimIssuedAt, ClaimExpiresAt:
			continue
		}
		cs.Claims[k] = normalize(v)
	}
	return cs, nil
}

// normalize undoes what encoding/json does to our claim shapes: []any of
// strings goes back to []string and nested objects are walked.
func normalize(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return t
			}
			out = append(out, s)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// NewJTI returns a fresh random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}
