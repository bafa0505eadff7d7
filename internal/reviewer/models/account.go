package models

import (
	"strings"
	"time"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// Account is a human reviewer authorized to answer review requests and
// identity decisions.
//
// Invariants:
//   - Email is non-empty, contains "@", and is stored lowercase
//   - Name is non-empty and at most 128 characters
//   - PasswordHash is a bcrypt hash, never plaintext
//   - Inactive accounts cannot log in
type Account struct {
	ID           id.ReviewerID `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	PasswordHash string        `json:"-"` // Never serialize - contains bcrypt hash
	Active       bool          `json:"active"`
	// LastDeviceFingerprint is the device hash seen on the most recent
	// login. Logins from a different device raise a security audit event.
	LastDeviceFingerprint string    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func NewAccount(
	reviewerID id.ReviewerID,
	email string,
	name string,
	passwordHash string,
	now time.Time,
) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reviewer email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reviewer email must be an email address")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reviewer name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reviewer name must be 128 characters or less")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}
	return &Account{
		ID:           reviewerID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases and trims an email so lookups and uniqueness
// checks are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
