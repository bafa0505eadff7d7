package handler

import (
	"strings"

	dErrors "provenance/pkg/domain-errors"
)

// maxPasswordLength matches bcrypt's 72-byte input limit. Anything longer
// could never have been hashed at provisioning time, so it is rejected
// before the credential check.
const maxPasswordLength = 72

// LoginRequest is the HTTP request body for POST /v1/reviewer/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalizes the email and checks the credential pair is complete.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at most %d bytes", maxPasswordLength)
	}
	return nil
}
