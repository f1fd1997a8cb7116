// Package auth holds the credential primitives used by the API: bcrypt
// password hashing and signed, time-limited bearer tokens.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is the bcrypt work factor. It is fixed so every stored hash
// costs the same to verify.
const passwordCost = bcrypt.DefaultCost

// HashPassword returns a salted bcrypt hash of plaintext.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// PasswordMatches reports whether plaintext hashes to hash. A mismatch is
// (false, nil); any other bcrypt failure, such as a malformed hash, is
// returned as an error.
func PasswordMatches(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}
