package jwtx_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "tenant-a-signing-secret"

func sampleClaims(now time.Time, ttl time.Duration) jwtx.ClaimSet {
	return jwtx.NewClaimSet("alice", map[string]any{
		"username":    "alice",
		"authorities": []string{"ROLE_ADMIN", "ROLE_USER"},
		"profile":     map[string]any{"team": "bar", "tags": []string{"x"}},
		"client_id":   "tenantA",
		"jti":         jwtx.NewJTI(),
	}, now, ttl)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	codec := jwtx.NewCodec()

	for _, alg := range jwtx.Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			want := sampleClaims(time.Now(), 10*time.Minute)

			token, err := codec.Sign(want, alg, testSecret)
			require.NoError(t, err)
			require.Len(t, strings.Split(token, "."), 3)

			got, err := codec.Verify(token, testSecret)
			require.NoError(t, err)

			require.Equal(t, want.Subject, got.Subject)
			require.True(t, want.IssuedAt.Equal(got.IssuedAt))
			require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
			require.Equal(t, want.Claims, got.Claims)
		})
	}
}

func TestSignRejectsBadInput(t *testing.T) {
	codec := jwtx.NewCodec()
	cs := sampleClaims(time.Now(), time.Minute)

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := codec.Sign(cs, jwtx.Algorithm("RS256"), testSecret)
		require.ErrorIs(t, err, jwtx.ErrInvalidAlgorithm)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := codec.Sign(cs, jwtx.HS256, "")
		require.ErrorIs(t, err, jwtx.ErrInvalidSecret)
	})

	t.Run("expiry before issue", func(t *testing.T) {
		bad := cs
		bad.ExpiresAt = bad.IssuedAt.Add(-time.Second)
		_, err := codec.Sign(bad, jwtx.HS256, testSecret)
		require.ErrorIs(t, err, jwtx.ErrInvalidClaims)
	})
}

func TestWireFormat(t *testing.T) {
	codec := jwtx.NewCodec()
	cs := sampleClaims(time.Now(), time.Minute)

	token, err := codec.Sign(cs, jwtx.HS384, testSecret)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	require.Contains(t, string(header), `"alg":"HS384"`)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	for _, k := range []string{"sub", "iat", "exp", "client_id", "jti"} {
		require.Contains(t, doc, k)
	}
}

func TestVerifyExpiry(t *testing.T) {
	codec := jwtx.NewCodec()

	t.Run("zero ttl is expired", func(t *testing.T) {
		token, err := codec.Sign(sampleClaims(time.Now(), 0), jwtx.HS256, testSecret)
		require.NoError(t, err)

		_, err = codec.Verify(token, testSecret)
		require.ErrorIs(t, err, jwtx.ErrExpiredToken)
		require.False(t, codec.IsValid(token, testSecret))
	})

	t.Run("past expiry", func(t *testing.T) {
		cs := sampleClaims(time.Now().Add(-time.Hour), time.Minute)
		token, err := codec.Sign(cs, jwtx.HS256, testSecret)
		require.NoError(t, err)

		_, err = codec.Verify(token, testSecret)
		require.ErrorIs(t, err, jwtx.ErrExpiredToken)
	})

	t.Run("clock option", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		token, err := codec.Sign(sampleClaims(issued, time.Minute), jwtx.HS256, testSecret)
		require.NoError(t, err)

		before := jwtx.NewCodec(jwtx.WithClock(func() time.Time { return issued.Add(30 * time.Second) }))
		require.True(t, before.IsValid(token, testSecret))

		after := jwtx.NewCodec(jwtx.WithClock(func() time.Time { return issued.Add(time.Minute) }))
		_, err = after.Verify(token, testSecret)
		require.ErrorIs(t, err, jwtx.ErrExpiredToken)
	})

	t.Run("signature is checked before expiry", func(t *testing.T) {
		token, err := codec.Sign(sampleClaims(time.Now(), 0), jwtx.HS256, testSecret)
		require.NoError(t, err)

		_, err = codec.Verify(token, "some-other-secret")
		require.ErrorIs(t, err, jwtx.ErrSignatureMismatch)
	})
}

func TestVerifyDetectsTampering(t *testing.T) {
	codec := jwtx.NewCodec()
	token, err := codec.Sign(sampleClaims(time.Now(), time.Hour), jwtx.HS256, testSecret)
	require.NoError(t, err)

	dot := strings.LastIndex(token, ".")
	sig := token[dot+1:]

	for i := range len(sig) {
		b := []byte(sig)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		tampered := token[:dot+1] + string(b)

		_, err := codec.Verify(tampered, testSecret)
		require.ErrorIs(t, err, jwtx.ErrSignatureMismatch, "byte %d", i)
		require.False(t, codec.IsValid(tampered, testSecret))
	}
}

func TestVerifyFailures(t *testing.T) {
	codec := jwtx.NewCodec()
	token, err := codec.Sign(sampleClaims(time.Now(), time.Hour), jwtx.HS512, testSecret)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := codec.Verify(token, "wrong")
		require.ErrorIs(t, err, jwtx.ErrSignatureMismatch)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := codec.Verify(token, "")
		require.ErrorIs(t, err, jwtx.ErrInvalidSecret)
	})

	t.Run("not a token", func(t *testing.T) {
		_, err := codec.Verify("definitely-not-a-jwt", testSecret)
		require.ErrorIs(t, err, jwtx.ErrMalformedToken)
	})

	t.Run("garbage payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		bad := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte("{nope")) + "." + parts[2]
		_, err := codec.Verify(bad, testSecret)
		require.ErrorIs(t, err, jwtx.ErrMalformedToken)
	})

	t.Run("asymmetric alg refused", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Verify(s, testSecret)
		require.Error(t, err)
		require.False(t, codec.IsValid(s, testSecret))
	})

	t.Run("missing exp", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
		s, err := raw.SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = codec.Verify(s, testSecret)
		require.ErrorIs(t, err, jwtx.ErrMalformedToken)
	})
}

func TestExtractors(t *testing.T) {
	codec := jwtx.NewCodec()
	cs := sampleClaims(time.Now(), time.Hour)
	token, err := codec.Sign(cs, jwtx.HS256, testSecret)
	require.NoError(t, err)

	sub, err := codec.ExtractSubject(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, "alice", sub)

	exp, err := codec.ExtractExpiry(token, testSecret)
	require.NoError(t, err)
	require.True(t, cs.ExpiresAt.Equal(exp))

	roles, err := codec.ExtractRoles(token, testSecret)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ROLE_ADMIN", "ROLE_USER"}, roles)

	t.Run("custom roles key", func(t *testing.T) {
		c := jwtx.NewCodec(jwtx.WithRolesKey("username"))
		roles, err := c.ExtractRoles(token, testSecret)
		require.NoError(t, err)
		require.Equal(t, []string{"alice"}, roles)
	})

	t.Run("share verify failures", func(t *testing.T) {
		_, err := codec.ExtractSubject(token, "wrong")
		require.ErrorIs(t, err, jwtx.ErrSignatureMismatch)

		_, err = codec.ExtractRoles("x.y", testSecret)
		require.ErrorIs(t, err, jwtx.ErrMalformedToken)
	})
}
