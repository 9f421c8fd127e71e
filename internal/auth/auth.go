// Package auth handles password hashing and bearer-token session resolution.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLen     = 32
	saltLen          = 16
)

// HashPassword derives a PBKDF2-SHA256 hash with a fresh random salt.
// Both values are returned base64-encoded for storage.
func HashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, saltLen)
	if _, err = rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	return deriveKey(password, saltBytes), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// VerifyPassword checks a password against a stored hash and salt.
func VerifyPassword(password, storedHash, storedSalt string) bool {
	saltBytes, err := base64.StdEncoding.DecodeString(storedSalt)
	if err != nil {
		return false
	}
	derived := deriveKey(password, saltBytes)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(storedHash)) == 1
}

func deriveKey(password string, salt []byte) string {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// NewToken issues a fresh session token. Storing it on the user record
// implicitly invalidates any previously issued token.
func NewToken() string {
	return uuid.NewString()
}
