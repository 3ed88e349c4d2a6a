package licensefile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const separator = ":"

// Codec seals and opens license records with one key.
type Codec struct {
	aead cipher.AEAD

	now       func() time.Time
	newSerial func() string
}

// NewCodec builds a codec for a KeySize key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Codec{
		aead:      aead,
		now:       time.Now,
		newSerial: func() string { return uuid.NewString() },
	}, nil
}

// NewRecord stamps a fresh record for deviceCode.
func (c *Codec) NewRecord(deviceCode string) Record {
	issuedAt := FormatIssuedAt(c.now())
	serial := c.newSerial()
	return Record{
		DeviceCode:   deviceCode,
		IssuedAt:     issuedAt,
		SerialNumber: serial,
		Checksum:     Checksum(deviceCode, serial, issuedAt),
	}
}

// Seal encrypts rec into the on-disk text form.
func (c *Codec) Seal(rec Record) (string, error) {
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext) + separator +
		base64.StdEncoding.EncodeToString(nonce), nil
}

// Open decrypts the on-disk text form. Any malformation is an error.
func (c *Codec) Open(contents string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(contents), separator)
	if len(parts) != 2 {
		return Record{}, fmt.Errorf("license file format is invalid")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return Record{}, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return Record{}, fmt.Errorf("decode nonce: %w", err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return Record{}, fmt.Errorf("nonce must be %d bytes, got %d", c.aead.NonceSize(), len(nonce))
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Record{}, fmt.Errorf("decrypt license: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return Record{}, fmt.Errorf("parse license content: %w", err)
	}
	return rec, nil
}
