package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/tabtoken/internal/tokens/domain"
	"github.com/aussiebroadwan/tabtoken/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func validPolicy() domain.ClientPolicy {
	return domain.ClientPolicy{
		ClientID:        "tenantA",
		Algorithm:       jwtx.HS256,
		EncryptedSecret: "{cipher}blob",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validPolicy().Validate())

	minimal := validPolicy()
	minimal.AccessTokenTTL = time.Second
	minimal.RefreshTokenTTL = time.Second
	require.NoError(t, minimal.Validate())

	tests := []struct {
		name   string
		mutate func(*domain.ClientPolicy)
	}{
		{"no client id", func(p *domain.ClientPolicy) { p.ClientID = "" }},
		{"no secret", func(p *domain.ClientPolicy) { p.EncryptedSecret = "" }},
		{"zero access ttl", func(p *domain.ClientPolicy) { p.AccessTokenTTL = 0 }},
		{"sub-second access ttl", func(p *domain.ClientPolicy) { p.AccessTokenTTL = 500 * time.Millisecond }},
		{"sub-second refresh ttl", func(p *domain.ClientPolicy) { p.RefreshTokenTTL = 999 * time.Millisecond }},
		{"asymmetric algorithm", func(p *domain.ClientPolicy) { p.Algorithm = "RS256" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(&p)
			require.ErrorIs(t, p.Validate(), domain.ErrInvalidPolicy)
		})
	}
}

func TestTokenTypeLabel(t *testing.T) {
	p := validPolicy()
	require.Equal(t, domain.DefaultTokenType, p.TokenTypeLabel())
	p.TokenType = "Bearer"
	require.Equal(t, "Bearer", p.TokenTypeLabel())
}
