package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/clubops/memberauth/config"
)

var (
	ErrKeyMissing       = errors.New("no encryption key or fallback secret configured")
	ErrCiphertextFormat = errors.New("malformed ciphertext")
	// ErrDecryptionFailed covers authentication-tag mismatch. It must
	// propagate as a hard failure: a forged secret would let an attacker
	// program their own TOTP generator.
	ErrDecryptionFailed = errors.New("secret decryption failed")
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Codec encrypts TOTP secrets at rest with AES-256-GCM. Stored values are
// base64(nonce || tag || ciphertext).
type Codec struct {
	key []byte
}

func NewCodec(cfg *config.Config) (*Codec, error) {
	key, err := deriveKey(cfg.TwoFA.EncryptionKey, cfg.TwoFA.FallbackSecret)
	if err != nil {
		return nil, err
	}
	return &Codec{key: key}, nil
}

func deriveKey(configured, fallback string) ([]byte, error) {
	if configured != "" {
		if raw, err := hex.DecodeString(configured); err == nil && len(raw) == 32 {
			return raw, nil
		}
		if raw, err := base64.StdEncoding.DecodeString(configured); err == nil && len(raw) == 32 {
			return raw, nil
		}
		return nil, fmt.Errorf("encryption key must decode to 32 bytes of hex or base64")
	}

	if fallback == "" {
		return nil, ErrKeyMissing
	}

	sum := sha256.Sum256([]byte(fallback))
	return sum[:], nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal returns ciphertext || tag; storage layout is nonce || tag || ciphertext.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Codec) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextFormat
	}

	if len(data) < nonceSize+tagSize {
		return "", ErrCiphertextFormat
	}

	nonce := data[:nonceSize]
	tag := data[nonceSize : nonceSize+tagSize]
	ciphertext := data[nonceSize+tagSize:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
