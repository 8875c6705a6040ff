package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Base64URL generates a cryptographically secure random base64url string.
func Base64URL(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// SecureToken generates a URL-safe secure token of the given length.
// Useful for invite tokens, session tokens, etc.
func SecureToken(length int) (string, error) {
	s, err := Base64URL(length)
	if err != nil {
		return "", err
	}
	if len(s) > length {
		return s[:length], nil
	}
	return s, nil
}
