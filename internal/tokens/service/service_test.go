package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/store"
	"github.com/aussiebroadwan/tabtoken/internal/tokens/telemetry"
	"github.com/aussiebroadwan/tabtoken/pkg/cryptox"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type memPolicies map[string]domain.ClientPolicy

func (m memPolicies) GetPolicy(_ context.Context, clientID string) (domain.ClientPolicy, error) {
	p, ok := m[clientID]
	if !ok {
		return domain.ClientPolicy{}, store.ErrNotFound
	}
	return p, nil
}

type memSubjects map[string]domain.Subject

func (m memSubjects) FindSubjectAttributes(_ context.Context, clientID, username string) (domain.Subject, error) {
	s, ok := m[clientID+"/"+username]
	if !ok {
		return domain.Subject{}, store.ErrNotFound
	}
	return s, nil
}

type failingSubjects struct{ err error }

func (f failingSubjects) FindSubjectAttributes(context.Context, string, string) (domain.Subject, error) {
	return domain.Subject{}, f.err
}

// countingRevealer counts how often a tenant secret is opened.
type countingRevealer struct {
	codec *cryptox.SecretCodec
	calls atomic.Int32
}

func (c *countingRevealer) Reveal(blob string) (string, error) {
	c.calls.Add(1)
	return c.codec.Reveal(blob)
}

const (
	secretA = "tenant-a-signing-secret"
	secretB = "tenant-b-signing-secret"
)

type fixture struct {
	issuer   *Issuer
	revealer *countingRevealer
	policies memPolicies
	subjects memSubjects
	metrics  *telemetry.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := cryptox.NewSecretCodec([]byte("master key for tests"))
	require.NoError(t, err)

	protect := func(s string) string {
		blob, err := codec.Protect(s)
		require.NoError(t, err)
		return blob
	}

	policies := memPolicies{
		"tenantA": {
			ClientID:        "tenantA",
			Algorithm:       jwtx.HS256,
			EncryptedSecret: protect(secretA),
			AccessTokenTTL:  900 * time.Second,
			RefreshTokenTTL: 3600 * time.Second,
		},
		"tenantB": {
			ClientID:        "tenantB",
			Algorithm:       jwtx.HS512,
			EncryptedSecret: protect(secretB),
			AccessTokenTTL:  5 * time.Minute,
			RefreshTokenTTL: time.Hour,
			TokenType:       "mac",
		},
	}
	subjects := memSubjects{
		"tenantA/alice": {Username: "alice", Name: "Alice Liddell", Authorities: []string{"ROLE_USER", "ROLE_ADMIN"}, Active: true},
		"tenantA/bob":   {Username: "bob", Name: "Bob", Active: false},
		"tenantB/alice": {Username: "alice", Name: "Alice B", Authorities: []string{"reader"}, Active: true},
	}

	reg := NewStrategyRegistry()
	reg.Register("tenantA", StandardStrategy{Subjects: subjects})
	reg.Register("tenantB", CompactStrategy{Subjects: subjects})

	revealer := &countingRevealer{codec: codec}
	metrics := telemetry.New()

	return &fixture{
		issuer: &Issuer{
			Resolver: &Resolver{Policies: policies, Strategies: reg},
			Secrets:  revealer,
			Codec:    jwtx.NewCodec(),
			Metrics:  metrics,
		},
		revealer: revealer,
		policies: policies,
		subjects: subjects,
		metrics:  metrics,
	}
}

func TestIssue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	codec := jwtx.NewCodec()

	res, err := f.issuer.Issue(context.Background(), "tenantA", "alice")
	require.NoError(t, err)

	require.Equal(t, int64(900), res.ExpiresIn)
	require.Equal(t, "bearer", res.TokenType)
	require.NotEmpty(t, res.JWTID)
	require.Equal(t, int32(1), f.revealer.calls.Load(), "secret must be revealed once per issuance")

	access, err := codec.Verify(res.AccessToken, secretA)
	require.NoError(t, err)
	require.Equal(t, "alice", access.Subject)
	require.Equal(t, res.JWTID, access.String(jwtx.ClaimJWTID))
	require.Equal(t, "tenantA", access.String(jwtx.ClaimClientID))
	require.Equal(t, "Alice Liddell", access.String(ClaimName))
	require.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, access.Strings(jwtx.DefaultRolesKey))
	require.Empty(t, access.String(jwtx.ClaimAccessTokenID))
	require.Equal(t, 900*time.Second, access.ExpiresAt.Sub(access.IssuedAt))

	refresh, err := codec.Verify(res.RefreshToken, secretA)
	require.NoError(t, err)
	require.Equal(t, "alice", refresh.Subject)
	require.Equal(t, res.JWTID, refresh.String(jwtx.ClaimAccessTokenID))
	require.NotEmpty(t, refresh.String(jwtx.ClaimJWTID))
	require.NotEqual(t, res.JWTID, refresh.String(jwtx.ClaimJWTID))
	require.Equal(t, "tenantA", refresh.String(jwtx.ClaimClientID))
	require.Equal(t, 3600*time.Second, refresh.ExpiresAt.Sub(refresh.IssuedAt))

	require.Len(t, res.AdditionalInfo, 2)
	require.Equal(t, "alice", res.AdditionalInfo[ClaimUsername])
	require.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, res.AdditionalInfo[jwtx.DefaultRolesKey])

	require.Equal(t, 1.0, f.metrics.IssuedCount("tenantA", opIssue, telemetry.OutcomeOK))
}

func TestIssueCompactStrategy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.issuer.Issue(context.Background(), "tenantB", "alice")
	require.NoError(t, err)
	require.Equal(t, "mac", res.TokenType)
	require.Equal(t, int64(300), res.ExpiresIn)
	require.Equal(t, map[string]any{ClaimUsername: "alice"}, res.AdditionalInfo)

	access, err := jwtx.NewCodec().Verify(res.AccessToken, secretB)
	require.NoError(t, err)
	require.Empty(t, access.String(ClaimName))
	require.Equal(t, []string{"reader"}, access.Strings(jwtx.DefaultRolesKey))

	// Tenant A's secret does not open tenant B's tokens.
	_, err = jwtx.NewCodec().Verify(res.AccessToken, secretA)
	require.ErrorIs(t, err, jwtx.ErrSignatureMismatch)
}

func TestIssueFreshIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	seen := map[string]bool{}
	for range 20 {
		res, err := f.issuer.Issue(context.Background(), "tenantA", "alice")
		require.NoError(t, err)
		require.False(t, seen[res.JWTID])
		seen[res.JWTID] = true
	}
}

func TestIssueFailures(t *testing.T) {
	t.Parallel()

	t.Run("unknown client reveals nothing", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.issuer.Issue(context.Background(), "unknownTenant", "alice")
		require.ErrorIs(t, err, ErrUnknownClient)
		require.Empty(t, res.AccessToken)
		require.Zero(t, f.revealer.calls.Load())
		require.Equal(t, 1.0, f.metrics.IssuedCount("unknown", opIssue, telemetry.OutcomeRejected))
	})

	t.Run("empty client id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.issuer.Issue(context.Background(), "  ", "alice")
		require.ErrorIs(t, err, ErrUnknownClient)
	})

	t.Run("policy without strategy", func(t *testing.T) {
		f := newFixture(t)
		f.policies["tenantC"] = f.policies["tenantA"]
		_, err := f.issuer.Issue(context.Background(), "tenantC", "alice")
		require.ErrorIs(t, err, ErrUnknownClient)
		require.Zero(t, f.revealer.calls.Load())
	})

	t.Run("subject not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.issuer.Issue(context.Background(), "tenantA", "mallory")
		require.ErrorIs(t, err, ErrSubjectNotFound)
		require.Zero(t, f.revealer.calls.Load())
	})

	t.Run("subjects are scoped per tenant", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.issuer.Issue(context.Background(), "tenantB", "bob")
		require.ErrorIs(t, err, ErrSubjectNotFound)
	})

	t.Run("inactive subject", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.issuer.Issue(context.Background(), "tenantA", "bob")
		require.ErrorIs(t, err, ErrSubjectInactive)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		f := newFixture(t)
		p := f.policies["tenantA"]
		p.Algorithm = "RS256"
		f.policies["tenantA"] = p

		_, err := f.issuer.Issue(context.Background(), "tenantA", "alice")
		var ierr *IssuanceError
		require.ErrorAs(t, err, &ierr)
		require.Equal(t, "tenantA", ierr.ClientID)
		require.ErrorIs(t, err, jwtx.ErrInvalidAlgorithm)
		require.Equal(t, 1.0, f.metrics.IssuedCount("tenantA", opIssue, telemetry.OutcomeError))
	})

	t.Run("secret from another master key", func(t *testing.T) {
		f := newFixture(t)
		other, err := cryptox.NewSecretCodec([]byte("some other master key"))
		require.NoError(t, err)
		blob, err := other.Protect(secretA)
		require.NoError(t, err)

		p := f.policies["tenantA"]
		p.EncryptedSecret = blob
		f.policies["tenantA"] = p

		_, err = f.issuer.Issue(context.Background(), "tenantA", "alice")
		var ierr *IssuanceError
		require.ErrorAs(t, err, &ierr)
		require.ErrorIs(t, err, cryptox.ErrDecoding)
		require.NotContains(t, err.Error(), secretA)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("disk on fire")
		reg := NewStrategyRegistry()
		reg.Register("tenantA", StandardStrategy{Subjects: failingSubjects{err: boom}})
		f.issuer.Resolver.Strategies = reg

		_, err := f.issuer.Issue(context.Background(), "tenantA", "alice")
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, ErrSubjectNotFound)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.issuer.Issue(ctx, "tenantA", "alice")
	require.NoError(t, err)
	f.revealer.calls.Store(0)

	second, err := f.issuer.Refresh(ctx, "tenantA", first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.revealer.calls.Load())
	require.NotEqual(t, first.JWTID, second.JWTID)

	refresh, err := jwtx.NewCodec().Verify(second.RefreshToken, secretA)
	require.NoError(t, err)
	require.Equal(t, second.JWTID, refresh.String(jwtx.ClaimAccessTokenID))
	require.Equal(t, "alice", refresh.Subject)

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := f.issuer.Refresh(ctx, "tenantA", first.AccessToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("token of another tenant", func(t *testing.T) {
		other, err := f.issuer.Issue(ctx, "tenantB", "alice")
		require.NoError(t, err)
		_, err = f.issuer.Refresh(ctx, "tenantA", other.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrSignatureMismatch)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.issuer.Refresh(ctx, "tenantA", "not.a.token")
		require.ErrorIs(t, err, ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrMalformedToken)
	})

	t.Run("subject disabled since issuance", func(t *testing.T) {
		g := newFixture(t)
		res, err := g.issuer.Issue(ctx, "tenantA", "alice")
		require.NoError(t, err)

		s := g.subjects["tenantA/alice"]
		s.Active = false
		g.subjects["tenantA/alice"] = s

		_, err = g.issuer.Refresh(ctx, "tenantA", res.RefreshToken)
		require.ErrorIs(t, err, ErrSubjectInactive)
	})
}

func TestIntrospect(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.issuer.Issue(ctx, "tenantA", "alice")
	require.NoError(t, err)

	in, err := f.issuer.Introspect(ctx, "tenantA", res.AccessToken)
	require.NoError(t, err)
	require.True(t, in.Active)
	require.Equal(t, "alice", in.Subject)
	require.Equal(t, "tenantA", in.ClientID)
	require.Equal(t, res.JWTID, in.JWTID)
	require.Equal(t, int64(900), in.ExpiresAt-in.IssuedAt)
	require.Equal(t, "alice", in.Claims[ClaimUsername])
	require.NotContains(t, in.Claims, jwtx.ClaimJWTID)

	require.True(t, f.issuer.IsTokenValid(ctx, "tenantA", res.AccessToken))
	require.False(t, f.issuer.IsTokenValid(ctx, "tenantB", res.AccessToken))
	require.False(t, f.issuer.IsTokenValid(ctx, "nobody", res.AccessToken))

	t.Run("tampered", func(t *testing.T) {
		tampered := res.AccessToken[:len(res.AccessToken)-2] + flip(res.AccessToken[len(res.AccessToken)-2:])
		_, err := f.issuer.Introspect(ctx, "tenantA", tampered)
		require.ErrorIs(t, err, jwtx.ErrSignatureMismatch)
		require.False(t, f.issuer.IsTokenValid(ctx, "tenantA", tampered))
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := f.issuer.Introspect(ctx, "nobody", res.AccessToken)
		require.ErrorIs(t, err, ErrUnknownClient)
	})
}

func TestExpiredTokens(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p := f.policies["tenantA"]
	p.AccessTokenTTL = time.Second
	f.policies["tenantA"] = p

	issuedAt := time.Now().Add(-time.Minute)
	f.issuer.Now = func() time.Time { return issuedAt }

	res, err := f.issuer.Issue(ctx, "tenantA", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.ExpiresIn)

	_, err = f.issuer.Introspect(ctx, "tenantA", res.AccessToken)
	require.ErrorIs(t, err, jwtx.ErrExpiredToken)
	require.False(t, f.issuer.IsTokenValid(ctx, "tenantA", res.AccessToken))

	// The refresh token still has most of its hour left.
	require.True(t, f.issuer.IsTokenValid(ctx, "tenantA", res.RefreshToken))
}

func TestParseStrategies(t *testing.T) {
	t.Parallel()
	subjects := memSubjects{}

	reg, err := ParseStrategies(" tenantA=standard, tenantB = COMPACT ,,", subjects, "")
	require.NoError(t, err)
	require.Equal(t, []string{"tenantA", "tenantB"}, reg.Clients())

	s, ok := reg.Lookup("tenantA")
	require.True(t, ok)
	require.Equal(t, StrategyStandard, s.Name())
	s, ok = reg.Lookup("tenantB")
	require.True(t, ok)
	require.Equal(t, StrategyCompact, s.Name())

	empty, err := ParseStrategies("", subjects, "")
	require.NoError(t, err)
	require.Empty(t, empty.Clients())

	_, err = ParseStrategies("tenantA=fancy", subjects, "")
	require.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = ParseStrategies("tenantA", subjects, "")
	require.Error(t, err)
	_, err = ParseStrategies("=standard", subjects, "")
	require.Error(t, err)
}

func TestStrategyRolesKey(t *testing.T) {
	t.Parallel()
	subjects := memSubjects{
		"t/alice": {Username: "alice", Authorities: []string{"admin"}, Active: true},
	}

	raw, err := StandardStrategy{Subjects: subjects, RolesKey: "roles"}.Claims(context.Background(), "t", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, raw.Access["roles"])
	require.NotContains(t, raw.Access, jwtx.DefaultRolesKey)

	raw, err = CompactStrategy{Subjects: subjects}.Claims(context.Background(), "t", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, raw.Access[jwtx.DefaultRolesKey])
	require.Equal(t, map[string]any{ClaimUsername: "alice"}, raw.Refresh)

	_, err = CompactStrategy{Subjects: subjects}.Claims(context.Background(), "t", " ")
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestIssuanceErrorMessage(t *testing.T) {
	err := &IssuanceError{Op: "sign access token", ClientID: "tenantA", Err: jwtx.ErrInvalidSecret}
	require.True(t, strings.HasPrefix(err.Error(), "issuance for tenantA failed: sign access token"))
	require.ErrorIs(t, err, jwtx.ErrInvalidSecret)
}

func flip(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
	}
	return string(b)
}
