package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// sealedPrefix marks values written by Seal. Rows stored before encryption
// was enabled carry plaintext and are returned unchanged by Open.
const sealedPrefix = "enc:v1:"

// EncryptionService seals secrets stored at rest, such as the SMTP password
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService derives an AES-256-GCM key from secret
func NewEncryptionService(secret string) *EncryptionService {
	key := pbkdf2.Key([]byte(secret), []byte("vanguard-settings-v1"), 10000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err) // 32-byte keys are always valid
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return &EncryptionService{aead: aead}
}

// Seal encrypts value as "enc:v1:" + base64(nonce || ciphertext). The empty
// string stays empty.
func (e *EncryptionService) Seal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(value), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Untagged values are returned as is.
func (e *EncryptionService) Open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("sealed value too short")
	}
	plain, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Seal
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
