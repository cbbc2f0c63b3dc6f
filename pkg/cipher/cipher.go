package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// envelopePrefix tags every ciphertext this package produces. Migration code
// uses it to tell encrypted fields from legacy plaintext.
const envelopePrefix = "enc:v1:"

var (
	ErrNoKey     = errors.New("field cipher key is not configured")
	ErrIntegrity = errors.New("ciphertext integrity check failed")
	ErrFormat    = errors.New("malformed ciphertext envelope")
)

// Cipher encrypts and decrypts diary text fields with AES-256-GCM. The key is
// fixed at construction and the cipher is safe for concurrent use.
type Cipher struct {
	aead stdcipher.AEAD
}

// New builds a Cipher from a base64-encoded 256-bit key.
func New(base64Key string) (*Cipher, error) {
	if base64Key == "" {
		return nil, ErrNoKey
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decoding cipher key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, envelopePrefix) {
		return "", ErrFormat
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, envelopePrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrFormat
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plain), nil
}

// IsCiphertext reports whether s carries this package's envelope. It is a
// prefix heuristic, not a validation.
func IsCiphertext(s string) bool {
	return strings.HasPrefix(s, envelopePrefix)
}
