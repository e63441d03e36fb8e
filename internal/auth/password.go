package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 64
	iterations = 210_000
)

// PasswordHasher derives and verifies PBKDF2-SHA512 password hashes.
// Hash and salt are stored base64-encoded.
type PasswordHasher struct{}

// NewPasswordHasher returns a hasher with the standard parameters.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{}
}

// Hash derives a key from the password with a fresh random salt.
func (h *PasswordHasher) Hash(password string) (hash, salt string, err error) {
	if password == "" {
		return "", "", fmt.Errorf("password must not be empty")
	}

	rawSalt := make([]byte, saltSize)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), rawSalt, iterations, keySize, sha512.New)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// Verify reports whether the password matches the stored hash and salt.
// It never returns an error: malformed or empty inputs simply fail to match.
// The comparison is constant-time.
func (h *PasswordHasher) Verify(password, hash, salt string) bool {
	if password == "" || hash == "" || salt == "" {
		return false
	}

	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(password), rawSalt, iterations, keySize, sha512.New)
	return subtle.ConstantTimeCompare(key, expected) == 1
}
