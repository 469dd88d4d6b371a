package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/telemetry"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
)

const (
	opIssue   = "issue"
	opRefresh = "refresh"
)

// SecretRevealer opens a tenant secret stored with cryptox.SecretCodec.
type SecretRevealer interface {
	Reveal(blob string) (string, error)
}

// Issuer mints linked access/refresh token pairs and checks tokens it
// minted. It keeps no state about issued tokens.
type Issuer struct {
	Resolver *Resolver
	Secrets  SecretRevealer
	Codec    *jwtx.Codec
	Metrics  *telemetry.Metrics

	// Now defaults to time.Now. It should agree with the Codec's clock.
	Now func() time.Time
}

func (s *Issuer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue mints a token pair for subject under clientID's policy.
//
// Policy and strategy are resolved before anything else, so an unknown
// client never gets as far as revealing a secret. The secret is revealed
// exactly once and used for both signatures.
func (s *Issuer) Issue(ctx context.Context, clientID, subject string) (domain.IssuanceResult, error) {
	start := time.Now()
	res, err := s.issue(ctx, clientID, subject)
	s.observe(clientID, opIssue, err, time.Since(start))
	return res, err
}

func (s *Issuer) issue(ctx context.Context, clientID, subject string) (domain.IssuanceResult, error) {
	policy, strategy, err := s.resolve(ctx, clientID)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	raw, err := strategy.Claims(ctx, clientID, subject)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	secret, err := s.reveal(policy)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	return s.mint(ctx, policy, secret, subject, raw)
}

// Refresh verifies refreshToken under clientID's secret and mints a new pair
// for the same subject. The subject is looked up again, so a subject
// disabled since the original issuance cannot refresh.
//
// The ati back-reference must be present but the access token it names is
// not checked; linkage is informational.
func (s *Issuer) Refresh(ctx context.Context, clientID, refreshToken string) (domain.IssuanceResult, error) {
	start := time.Now()
	res, err := s.refresh(ctx, clientID, refreshToken)
	s.observe(clientID, opRefresh, err, time.Since(start))
	return res, err
}

func (s *Issuer) refresh(ctx context.Context, clientID, refreshToken string) (domain.IssuanceResult, error) {
	l := slogx.FromContext(ctx)

	policy, strategy, err := s.resolve(ctx, clientID)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	secret, err := s.reveal(policy)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	claims, err := s.Codec.Verify(refreshToken, secret)
	if err != nil {
		l.Info("refresh token rejected", slog.String("client_id", clientID), slog.String("err", err.Error()))
		return domain.IssuanceResult{}, fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}
	if claims.String(jwtx.ClaimAccessTokenID) == "" {
		return domain.IssuanceResult{}, fmt.Errorf("%w: not a refresh token", ErrInvalidRefresh)
	}
	if claims.String(jwtx.ClaimClientID) != clientID {
		l.Warn("refresh token presented for another client",
			slog.String("client_id", clientID),
			slog.String("token_client_id", claims.String(jwtx.ClaimClientID)),
		)
		return domain.IssuanceResult{}, fmt.Errorf("%w: client mismatch", ErrInvalidRefresh)
	}

	raw, err := strategy.Claims(ctx, clientID, claims.Subject)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	return s.mint(ctx, policy, secret, claims.Subject, raw)
}

// Introspect verifies token under clientID's secret and reports what it
// carries. Verification failures keep their jwtx kind so callers can tell an
// expired token from a forged one.
func (s *Issuer) Introspect(ctx context.Context, clientID, token string) (domain.Introspection, error) {
	policy, err := s.Resolver.Resolve(ctx, clientID)
	if err != nil {
		return domain.Introspection{}, err
	}

	secret, err := s.Secrets.Reveal(policy.EncryptedSecret)
	if err != nil {
		s.Metrics.ObserveValidation(clientID, telemetry.OutcomeError)
		return domain.Introspection{}, fmt.Errorf("reveal secret: %w", err)
	}

	claims, err := s.Codec.Verify(token, secret)
	s.Metrics.ObserveValidation(clientID, validationResult(err))
	if err != nil {
		return domain.Introspection{}, err
	}

	rest := make(map[string]any, len(claims.Claims))
	maps.Copy(rest, claims.Claims)
	delete(rest, jwtx.ClaimClientID)
	delete(rest, jwtx.ClaimJWTID)

	return domain.Introspection{
		Active:    true,
		Subject:   claims.Subject,
		ClientID:  claims.String(jwtx.ClaimClientID),
		JWTID:     claims.String(jwtx.ClaimJWTID),
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
		Claims:    rest,
	}, nil
}

// IsTokenValid is the yes/no form of Introspect: every failure, an unknown
// client included, is just false.
func (s *Issuer) IsTokenValid(ctx context.Context, clientID, token string) bool {
	policy, err := s.Resolver.Resolve(ctx, clientID)
	if err != nil {
		return false
	}
	secret, err := s.Secrets.Reveal(policy.EncryptedSecret)
	if err != nil {
		return false
	}
	return s.Codec.IsValid(token, secret)
}

func (s *Issuer) resolve(ctx context.Context, clientID string) (domain.ClientPolicy, ClaimStrategy, error) {
	policy, err := s.Resolver.Resolve(ctx, clientID)
	if err != nil {
		return domain.ClientPolicy{}, nil, err
	}
	strategy, err := s.Resolver.ResolveClaimStrategy(clientID)
	if err != nil {
		return domain.ClientPolicy{}, nil, err
	}
	return policy, strategy, nil
}

func (s *Issuer) reveal(policy domain.ClientPolicy) (string, error) {
	secret, err := s.Secrets.Reveal(policy.EncryptedSecret)
	if err != nil {
		return "", &IssuanceError{Op: "reveal secret", ClientID: policy.ClientID, Err: err}
	}
	return secret, nil
}

func (s *Issuer) mint(
	ctx context.Context,
	policy domain.ClientPolicy,
	secret, subject string,
	raw domain.RawClaims,
) (domain.IssuanceResult, error) {
	now := s.now()
	accessID := jwtx.NewJTI()

	access := newClaims().
		merge(raw.Access).
		set(jwtx.ClaimClientID, policy.ClientID).
		set(jwtx.ClaimJWTID, accessID).
		build()

	accessToken, err := s.Codec.Sign(
		jwtx.NewClaimSet(subject, access, now, policy.AccessTokenTTL),
		policy.Algorithm, secret,
	)
	if err != nil {
		return domain.IssuanceResult{}, &IssuanceError{Op: "sign access token", ClientID: policy.ClientID, Err: err}
	}

	refresh := newClaims().
		merge(raw.Refresh).
		set(jwtx.ClaimClientID, policy.ClientID).
		set(jwtx.ClaimJWTID, jwtx.NewJTI()).
		set(jwtx.ClaimAccessTokenID, accessID).
		build()

	refreshToken, err := s.Codec.Sign(
		jwtx.NewClaimSet(subject, refresh, now, policy.RefreshTokenTTL),
		policy.Algorithm, secret,
	)
	if err != nil {
		return domain.IssuanceResult{}, &IssuanceError{Op: "sign refresh token", ClientID: policy.ClientID, Err: err}
	}

	additional := make(map[string]any, len(raw.Additional))
	maps.Copy(additional, raw.Additional)

	slogx.FromContext(ctx).Info("token pair issued",
		slog.String("client_id", policy.ClientID),
		slog.String("sub", subject),
		slog.String("jti", accessID),
	)

	return domain.IssuanceResult{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenType:      policy.TokenTypeLabel(),
		JWTID:          accessID,
		ExpiresIn:      int64(policy.AccessTokenTTL / time.Second),
		AdditionalInfo: additional,
	}, nil
}

func (s *Issuer) observe(clientID, op string, err error, took time.Duration) {
	outcome := telemetry.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownClient):
		// Unknown ids come from callers; keep them out of the label set.
		clientID = "unknown"
		outcome = telemetry.OutcomeRejected
	case errors.Is(err, ErrSubjectNotFound),
		errors.Is(err, ErrSubjectInactive),
		errors.Is(err, ErrInvalidRefresh):
		outcome = telemetry.OutcomeRejected
	default:
		outcome = telemetry.OutcomeError
	}
	s.Metrics.ObserveIssuance(clientID, op, outcome, took)
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, jwtx.ErrExpiredToken):
		return "expired"
	case errors.Is(err, jwtx.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, jwtx.ErrMalformedToken):
		return "malformed"
	default:
		return telemetry.OutcomeError
	}
}
