package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/goliatone/go-channels/core"
)

// ErrDecryptionFailed hides the underlying cipher failure from callers so
// tampering attempts cannot probe the key or the payload shape.
var ErrDecryptionFailed = errors.New("security: decrypt failed")

// AppKeyVault seals channel credentials with AES-256-GCM under a single
// application key. The stored form is base64(nonce || ciphertext || tag) in
// one opaque string, which keeps credential columns plain text.
type AppKeyVault struct {
	key []byte
}

func NewAppKeyVault(keyMaterial []byte) (*AppKeyVault, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	return &AppKeyVault{key: normalizeKey(key)}, nil
}

func NewAppKeyVaultFromString(key string) (*AppKeyVault, error) {
	return NewAppKeyVault([]byte(key))
}

func (v *AppKeyVault) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	if v == nil {
		return "", fmt.Errorf("security: vault is nil")
	}
	if len(plaintext) == 0 {
		return "", fmt.Errorf("security: plaintext is required")
	}
	gcm, err := v.cipher()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("security: nonce generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

func (v *AppKeyVault) Decrypt(_ context.Context, blob string) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("security: vault is nil")
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	gcm, err := v.cipher()
	if err != nil {
		return nil, err
	}
	if len(raw) <= gcm.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Hash returns the hex digest used for values that only need equality
// checks, such as webhook verify tokens.
func (v *AppKeyVault) Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func (v *AppKeyVault) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// normalizeKey accepts exact AES key sizes as-is and digests anything else
// down to 32 bytes.
func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

var _ core.SecretVault = (*AppKeyVault)(nil)
