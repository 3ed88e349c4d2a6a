package licensefile

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"licensebridge/internal/config"
)

// KeySize is the AES-256 key length.
const KeySize = 32

// scrypt parameters for passphrase keys. The salt is fixed because the file
// format has nowhere to store one: every installation sharing a passphrase
// must derive the same key.
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

var passphraseSalt = []byte("licensebridge/license-key/v1")

// KeyFromHex decodes a hex key. Short keys are zero-padded and long keys
// truncated to KeySize.
func KeyFromHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("key is empty")
	}
	key := make([]byte, KeySize)
	copy(key, raw)
	return key, nil
}

// KeyFromPassphrase derives a key with scrypt.
func KeyFromPassphrase(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is empty")
	}
	key, err := scrypt.Key([]byte(passphrase), passphraseSalt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// KeyFromConfig picks the passphrase when set, otherwise the hex key.
func KeyFromConfig(cfg config.BackendConfig) ([]byte, error) {
	if cfg.KeyPassphrase != "" {
		return KeyFromPassphrase(cfg.KeyPassphrase)
	}
	return KeyFromHex(cfg.KeyHex)
}
