package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultPBKDF2Iterations = 310000
	pbkdf2SaltLength        = 16
	pbkdf2KeyLength         = 32
)

// PasswordHasher encodes passwords as "iterations:base64(salt):base64(key)" using PBKDF2-HMAC-SHA256.
// Legacy bcrypt hashes still verify.
type PasswordHasher struct {
	iterations int

	placeholderOnce sync.Once
	placeholder     string
}

func NewPasswordHasher(iterations int) *PasswordHasher {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return &PasswordHasher{iterations: iterations}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, h.iterations, pbkdf2KeyLength, sha256.New)
	return fmt.Sprintf("%d:%s:%s",
		h.iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Malformed hashes never match.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	if strings.HasPrefix(encoded, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return false
	}
	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(expected) == 0 {
		return false
	}

	actual := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// VerifyMissing does the work of Verify against a throwaway hash and never matches.
// Call it when no stored hash exists.
func (h *PasswordHasher) VerifyMissing(password string) bool {
	h.placeholderOnce.Do(func() {
		h.placeholder, _ = h.Hash("placeholder")
	})
	h.Verify(password, h.placeholder)
	return false
}

// NeedsRehash is true for legacy hashes and for hashes made with a different iteration count.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	if strings.HasPrefix(encoded, "$2") {
		return true
	}
	parts := strings.SplitN(encoded, ":", 2)
	iterations, err := strconv.Atoi(parts[0])
	return err != nil || iterations != h.iterations
}
