package handler

import (
	"strings"

	dErrors "provenance/pkg/domain-errors"
)

const maxCommentsLength = 2000

// ReviewResponseRequest is the HTTP request body for
// POST /v1/runs/{runID}/reviews/{type}. The verification type comes from the
// URL, the reviewer from the token.
type ReviewResponseRequest struct {
	// Approved is a pointer so an absent field fails validation instead of
	// silently rejecting the client.
	Approved *bool  `json:"approved"`
	Comments string `json:"comments,omitempty"`
}

func (r *ReviewResponseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Approved == nil {
		return dErrors.New(dErrors.CodeValidation, "approved is required")
	}
	r.Comments = strings.TrimSpace(r.Comments)
	if len(r.Comments) > maxCommentsLength {
		return dErrors.Newf(dErrors.CodeValidation, "comments must be at most %d characters", maxCommentsLength)
	}
	return nil
}
