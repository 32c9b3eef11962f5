package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// ErrInvalidKey is returned when the encryption key is not 32 bytes long.
var ErrInvalidKey = errors.New("DATA_ENCRYPTION_KEY must be exactly 32 characters")

// Encrypt seals plaintext with AES-256-GCM and returns base64(nonce|ciphertext).
func Encrypt(key string, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key string, cryptoText string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(cryptoText)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key string) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SecretBox encrypts short secrets (TOTP seeds) at rest. With an empty key it
// stores values as they are.
type SecretBox struct {
	key string
}

func NewSecretBox(key string) *SecretBox {
	return &SecretBox{key: key}
}

const sealedPrefix = "enc:"

func (b *SecretBox) Seal(value string) (string, error) {
	if b == nil || b.key == "" || value == "" {
		return value, nil
	}
	sealed, err := Encrypt(b.key, []byte(value))
	if err != nil {
		return "", err
	}
	return sealedPrefix + sealed, nil
}

// Open accepts both sealed and plain values so enabling the key later keeps old
// rows readable.
func (b *SecretBox) Open(value string) (string, error) {
	if len(value) < len(sealedPrefix) || value[:len(sealedPrefix)] != sealedPrefix {
		return value, nil
	}
	if b == nil || b.key == "" {
		return "", ErrInvalidKey
	}
	plain, err := Decrypt(b.key, value[len(sealedPrefix):])
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
