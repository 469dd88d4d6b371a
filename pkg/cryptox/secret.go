package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// CipherPrefix marks a stored value as a SecretCodec blob. Reveal accepts
// blobs with or without it.
const CipherPrefix = "{cipher}"

// MasterKeyEnv is read by LoadMasterKey when no key file is configured.
const MasterKeyEnv = "AUTH_MASTER_KEY"

var (
	ErrEncoding     = errors.New("cryptox: cannot protect secret")
	ErrDecoding     = errors.New("cryptox: cannot reveal secret")
	ErrNoMasterKey  = errors.New("cryptox: master key is not configured")
	ErrEmptyKeyData = errors.New("cryptox: master key material is empty")
)

const (
	nonceSize = 12
	tagSize   = 16
)

// SecretCodec protects tenant signing secrets at rest. Protect is
// deterministic: the GCM nonce is an HMAC of the plaintext under a key
// separate from the encryption key, so the same secret always produces the
// same blob under the same master key.
//
// A SecretCodec is immutable after construction and safe for concurrent use.
type SecretCodec struct {
	aead     cipher.AEAD
	nonceKey []byte
}

// NewSecretCodec derives the encryption and nonce keys from keyMaterial with
// HKDF-SHA256. keyMaterial can be any length; it is never used directly as a
// key.
func NewSecretCodec(keyMaterial []byte) (*SecretCodec, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrEmptyKeyData
	}

	kdf := hkdf.New(sha256.New, keyMaterial, nil, []byte("tabtoken secret codec v1"))
	encKey := make([]byte, 32)
	nonceKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, encKey); err != nil {
		return nil, fmt.Errorf("cryptox: derive encryption key: %w", err)
	}
	if _, err := io.ReadFull(kdf, nonceKey); err != nil {
		return nil, fmt.Errorf("cryptox: derive nonce key: %w", err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	return &SecretCodec{aead: gcm, nonceKey: nonceKey}, nil
}

// Protect encrypts secret and returns it as CipherPrefix followed by
// base64url(nonce || ciphertext || tag).
func (c *SecretCodec) Protect(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrEncoding)
	}

	mac := hmac.New(sha256.New, c.nonceKey)
	mac.Write([]byte(secret))
	nonce := mac.Sum(nil)[:nonceSize]

	sealed := c.aead.Seal(nonce, nonce, []byte(secret), nil)
	return CipherPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Reveal is the inverse of Protect. Every failure, whether bad encoding, a
// truncated blob, a different master key or tampering, is ErrDecoding.
func (c *SecretCodec) Reveal(blob string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(blob), CipherPrefix)
	if raw == "" {
		return "", fmt.Errorf("%w: empty blob", ErrDecoding)
	}

	data, err := base64.RawURLEncoding.Strict().DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	if len(data) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: blob too short", ErrDecoding)
	}

	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	if len(plain) == 0 {
		return "", fmt.Errorf("%w: empty secret", ErrDecoding)
	}
	return string(plain), nil
}

// LoadMasterKey returns the master key material. The file at path wins when
// path is set, otherwise AUTH_MASTER_KEY is used. Surrounding whitespace is
// trimmed so key files written with a trailing newline behave.
func LoadMasterKey(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: read master key file: %w", err)
		}
		key := []byte(strings.TrimSpace(string(data)))
		if len(key) == 0 {
			return nil, ErrEmptyKeyData
		}
		return key, nil
	}

	if env := strings.TrimSpace(os.Getenv(MasterKeyEnv)); env != "" {
		return []byte(env), nil
	}
	return nil, ErrNoMasterKey
}
