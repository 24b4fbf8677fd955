package security

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/goliatone/go-channels/core"
)

const (
	// KeySourceFile means the key came from encryption.key_file.
	KeySourceFile = "file"
	// KeySourceInline means the key came from encryption.key.
	KeySourceInline = "inline"
	// KeySourcePassphrase means the key was derived from encryption.passphrase.
	KeySourcePassphrase = "passphrase"
	// KeySourceDevelopment means the insecure development fallback was used.
	KeySourceDevelopment = "development-fallback"
)

const (
	passphraseSalt       = "go-channels.vault.v1"
	passphraseIterations = 100_000
	derivedKeyLength     = 32
)

// ResolveKey walks the configured key sources in priority order: key file,
// inline key (base64, hex, or raw), then passphrase derivation. When nothing
// resolves the development fallback applies outside production; production
// fails hard instead.
func ResolveKey(cfg core.EncryptionConfig, production bool) ([]byte, string, error) {
	if path := strings.TrimSpace(cfg.KeyFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("security: read key file: %w", err)
		}
		material := strings.TrimSpace(string(raw))
		if material == "" {
			return nil, "", fmt.Errorf("security: key file is empty: %s", path)
		}
		return decodeKeyMaterial(material), KeySourceFile, nil
	}

	if inline := strings.TrimSpace(cfg.Key); inline != "" {
		return decodeKeyMaterial(inline), KeySourceInline, nil
	}

	if passphrase := strings.TrimSpace(cfg.Passphrase); passphrase != "" {
		key := pbkdf2.Key([]byte(passphrase), []byte(passphraseSalt), passphraseIterations, derivedKeyLength, sha256.New)
		return key, KeySourcePassphrase, nil
	}

	if production {
		return nil, "", fmt.Errorf("security: no encryption key configured in production")
	}
	sum := sha256.Sum256([]byte("go-channels.insecure-development-key"))
	return sum[:], KeySourceDevelopment, nil
}

// decodeKeyMaterial tries base64 then hex before falling back to the raw
// bytes. Decoded forms only win when they produce an exact AES key size.
func decodeKeyMaterial(material string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(material); err == nil {
		if isAESKeySize(len(decoded)) {
			return decoded
		}
	}
	if decoded, err := hex.DecodeString(material); err == nil {
		if isAESKeySize(len(decoded)) {
			return decoded
		}
	}
	return []byte(material)
}

func isAESKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}
