// Package secrets hashes and verifies reviewer passwords with bcrypt.
package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "provenance/pkg/domain-errors"
)

// Hash derives the storable bcrypt hash for a password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
	case err != nil:
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify compares a presented password against the stored hash. A mismatch
// carries CodeUnauthorized; the login path folds that into its generic
// invalid-credentials answer. Any other failure is internal.
func Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return fmt.Errorf("could not verify password: %w", err)
}
