package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Secret sizes in bytes, before encoding.
const (
	// SecretSize256 suits HS256 (43 chars base64url).
	SecretSize256 = 32
	// SecretSize384 suits HS384 (64 chars base64url).
	SecretSize384 = 48
	// SecretSize512 suits HS512 (86 chars base64url).
	SecretSize512 = 64
)

// GenerateSecret returns size random bytes encoded as base64url without
// padding, suitable as a tenant signing secret.
func GenerateSecret(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: secret size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint returns a short, stable handle for a token or secret that is
// safe to log. It is the first 12 characters of base64url(SHA-256(v)).
func Fingerprint(v string) string {
	sum := sha256.Sum256([]byte(v))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:12]
}
