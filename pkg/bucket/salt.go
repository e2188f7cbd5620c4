package bucket

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// SaltLength is the length of a generated salt in characters.
const SaltLength = 32

// GenerateSalt returns a new 32-character lowercase hex salt from crypto/rand.
func GenerateSalt() (string, error) {
	b := make([]byte, SaltLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrSaltGeneration, err)
	}
	return hex.EncodeToString(b), nil
}

// MustGenerateSalt is like GenerateSalt but panics if the random source fails.
func MustGenerateSalt() string {
	s, err := GenerateSalt()
	if err != nil {
		panic(err)
	}
	return s
}

// IsValidSalt reports whether s has the shape of a generated salt.
func IsValidSalt(s string) bool {
	if len(s) != SaltLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
