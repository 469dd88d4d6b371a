package jwtx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken    = errors.New("jwtx: malformed token")
	ErrSignatureMismatch = errors.New("jwtx: signature mismatch")
	ErrExpiredToken      = errors.New("jwtx: token expired")
)

// Verify parses token, checks its signature against secret and then its
// expiry, in that order. The error tells you which check failed:
// ErrMalformedToken, ErrSignatureMismatch or ErrExpiredToken.
func (c *Codec) Verify(token, secret string) (ClaimSet, error) {
	if secret == "" {
		return ClaimSet{}, ErrInvalidSecret
	}
	if err := checkSegments(token); err != nil {
		return ClaimSet{}, err
	}

	valid := make([]string, 0, len(Algorithms()))
	for _, a := range Algorithms() {
		valid = append(valid, a.String())
	}

	// Expiry is ours to check so it goes through the Codec clock and so it
	// can only ever be reported after the signature has been accepted.
	parser := jwt.NewParser(
		jwt.WithValidMethods(valid),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	mc := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, mc, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return ClaimSet{}, classify(err)
	}

	cs, err := claimSetFromMap(mc)
	if err != nil {
		return ClaimSet{}, err
	}
	if err := cs.ValidateExpiry(c.now()); err != nil {
		return ClaimSet{}, err
	}
	return cs, nil
}

// IsValid is the yes/no form of Verify. Tampered, expired, malformed, wrong
// secret: all of them are just false here. Use Verify when the reason
// matters.
func (c *Codec) IsValid(token, secret string) bool {
	cs, err := c.Verify(token, secret)
	if err != nil {
		return false
	}
	return cs.ExpiresAt.After(c.now())
}

// ExtractSubject verifies token and returns its "sub".
func (c *Codec) ExtractSubject(token, secret string) (string, error) {
	cs, err := c.Verify(token, secret)
	if err != nil {
		return "", err
	}
	return cs.Subject, nil
}

// ExtractExpiry verifies token and returns its "exp".
func (c *Codec) ExtractExpiry(token, secret string) (time.Time, error) {
	cs, err := c.Verify(token, secret)
	if err != nil {
		return time.Time{}, err
	}
	return cs.ExpiresAt, nil
}

// ExtractRoles verifies token and returns the roles claim. A token without
// roles yields an empty slice, not an error.
func (c *Codec) ExtractRoles(token, secret string) ([]string, error) {
	cs, err := c.Verify(token, secret)
	if err != nil {
		return nil, err
	}
	return cs.Strings(c.rolesKey), nil
}

// checkSegments does the structural part up front. A signature segment that
// does not decode cleanly can never match, so it is reported as a mismatch
// rather than as a malformed token.
func checkSegments(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	enc := base64.RawURLEncoding.Strict()
	for _, seg := range parts[:2] {
		if _, err := enc.DecodeString(seg); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedToken, err)
		}
	}
	if _, err := enc.DecodeString(parts[2]); err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}
