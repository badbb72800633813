package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/user"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Credentials are obscured at rest rather than truly secret: the key is
// derived from the local user and host names, so the settings file is only
// readable on the machine (and account) that wrote it.
var keySalt = []byte("romm-autosync.settings.v1")

func identitySeed() []byte {
	username := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return []byte(username + "@" + hostname)
}

func deriveKey() ([]byte, error) {
	r := hkdf.New(sha256.New, identitySeed(), keySalt, []byte("settings-cipher"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive settings key: %w", err)
	}
	return key, nil
}

// Obscure encrypts a sensitive settings value for storage in settings.ini.
func Obscure(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	key, err := deriveKey()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Reveal decrypts a value produced by Obscure. Values that do not decode are
// returned as-is so settings written before encryption keep working.
func Reveal(stored string) string {
	if stored == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return stored
	}
	key, err := deriveKey()
	if err != nil {
		return stored
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return stored
	}
	if len(raw) < aead.NonceSize() {
		return stored
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return stored
	}
	return string(plain)
}
