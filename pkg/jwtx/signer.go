package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is one of the HMAC signing algorithms a tenant may choose.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
)

var (
	ErrInvalidAlgorithm = errors.New("jwtx: unsupported signing algorithm")
	ErrInvalidSecret    = errors.New("jwtx: signing secret is empty")
	ErrInvalidClaims    = errors.New("jwtx: invalid claims")
)

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{HS256, HS384, HS512}
}

// ParseAlgorithm accepts the algorithm name in any case ("hs512" works).
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := a.method(); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAlgorithm, s)
	}
	return a, nil
}

func (a Algorithm) String() string { return string(a) }

func (a Algorithm) method() (*jwt.SigningMethodHMAC, error) {
	switch a {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, ErrInvalidAlgorithm
	}
}

// Codec signs ClaimSets into compact JWS strings and parses them back. It
// holds no per-tenant state: the algorithm and secret come in with every
// call, which is what lets one Codec serve every client.
type Codec struct {
	rolesKey string
	now      func() time.Time
}

// CodecOption tweaks a Codec at construction time.
type CodecOption func(*Codec)

// WithRolesKey changes the claim ExtractRoles reads.
func WithRolesKey(key string) CodecOption {
	return func(c *Codec) {
		if key != "" {
			c.rolesKey = key
		}
	}
}

// WithClock swaps the clock used for expiry checks, handy in tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec returns a Codec reading roles from DefaultRolesKey and checking
// expiry against the wall clock.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		rolesKey: DefaultRolesKey,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign turns claims into a signed token. It is a pure function of its
// inputs; the issue time is whatever the ClaimSet already says.
func (c *Codec) Sign(claims ClaimSet, alg Algorithm, secret string) (string, error) {
	method, err := alg.method()
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAlgorithm, alg)
	}
	if secret == "" {
		return "", ErrInvalidSecret
	}
	if claims.ExpiresAt.Before(claims.IssuedAt) {
		return "", fmt.Errorf("%w: expiry before issue time", ErrInvalidClaims)
	}

	t := jwt.NewWithClaims(method, claims.mapClaims())
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}
