// Package authn is the admission gate for inbound service calls. It checks a
// basic credential ("id:secret", base64 encoded) against the one configured
// identity and, on success, records who called in the request context.
//
// The package is transport agnostic: pkg/httpx and pkg/grpcx adapt it to
// HTTP headers and gRPC metadata.
package authn

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
)

var (
	ErrMissingCredential   = errors.New("authn: credential missing")
	ErrMalformedCredential = errors.New("authn: credential malformed")
	ErrIdentityMismatch    = errors.New("authn: identity mismatch")
	ErrSecretMismatch      = errors.New("authn: secret mismatch")
	ErrNotConfigured       = errors.New("authn: client id and secret are required")
)

// Rejection texts handed back to callers. They are deliberately coarse: a
// wrong id and a wrong secret read the same from the outside.
const (
	ReasonMissing   = "Authentication data is missing"
	ReasonInvalid   = "Provided authentication is not valid"
	ReasonMalformed = "There was an error trying to verify provided authentication"
)

const basicScheme = "basic "

// Identity is who made the request. It only ever lives in a context.
type Identity struct {
	ClientID string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the Identity attached by a successful
// Authenticate call.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Outcome labels reported to an Observer.
const (
	OutcomeAdmitted         = "admitted"
	OutcomeMissing          = "missing"
	OutcomeMalformed        = "malformed"
	OutcomeIdentityMismatch = "identity_mismatch"
	OutcomeSecretMismatch   = "secret_mismatch"
)

// Observer is told the outcome of every Authenticate call.
type Observer func(outcome string)

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithObserver registers fn to be called once per decision.
func WithObserver(fn Observer) Option {
	return func(a *Authenticator) { a.observe = fn }
}

// Authenticator holds the single accepted credential. It is read-only after
// New and safe for concurrent use.
type Authenticator struct {
	clientID []byte
	secret   []byte
	observe  Observer
}

// New returns an Authenticator accepting exactly clientID:secret.
func New(clientID, secret string, opts ...Option) (*Authenticator, error) {
	if clientID == "" || secret == "" {
		return nil, ErrNotConfigured
	}
	a := &Authenticator{clientID: []byte(clientID), secret: []byte(secret)}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate checks header, the raw value of the Authorization header or
// metadata entry. The "Basic " scheme prefix is optional. On success the
// returned context carries the caller's Identity; on failure ctx is returned
// unchanged together with one of the Err* values above.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (context.Context, error) {
	out, err := a.authenticate(ctx, header)
	if a.observe != nil {
		a.observe(Outcome(err))
	}
	return out, err
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (context.Context, error) {
	log := slogx.FromContext(ctx)

	value := strings.TrimSpace(header)
	switch {
	case strings.EqualFold(value, strings.TrimSpace(basicScheme)):
		value = ""
	case len(value) >= len(basicScheme) && strings.EqualFold(value[:len(basicScheme)], basicScheme):
		value = strings.TrimSpace(value[len(basicScheme):])
	}
	if value == "" {
		log.Debug("authn: no credential presented")
		return ctx, ErrMissingCredential
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		log.Warn("authn: credential is not base64", "err", err)
		return ctx, ErrMalformedCredential
	}

	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		log.Warn("authn: credential has no separator")
		return ctx, ErrMalformedCredential
	}

	// Both comparisons always run so timing does not reveal which half was
	// wrong.
	idOK := subtle.ConstantTimeCompare([]byte(id), a.clientID) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(secret), a.secret) == 1

	switch {
	case !idOK:
		log.Warn("authn: unknown client", "client_id", id)
		return ctx, ErrIdentityMismatch
	case !secretOK:
		log.Warn("authn: bad secret", "client_id", id)
		return ctx, ErrSecretMismatch
	}

	ctx = WithIdentity(ctx, Identity{ClientID: id})
	return slogx.WithContext(ctx, log.With("caller", id)), nil
}

// Reason maps an Authenticate error to the text sent back to the caller.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return ReasonMissing
	case errors.Is(err, ErrMalformedCredential):
		return ReasonMalformed
	default:
		return ReasonInvalid
	}
}

// Outcome maps an Authenticate result to one of the Outcome* labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAdmitted
	case errors.Is(err, ErrMissingCredential):
		return OutcomeMissing
	case errors.Is(err, ErrMalformedCredential):
		return OutcomeMalformed
	case errors.Is(err, ErrIdentityMismatch):
		return OutcomeIdentityMismatch
	default:
		return OutcomeSecretMismatch
	}
}

// Encode builds the header value a client presents, "Basic " included.
func Encode(clientID, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+secret))
}
