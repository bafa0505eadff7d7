package handler

import (
	"strings"

	"provenance/internal/record"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	pstrings "provenance/pkg/platform/strings"
)

// Intake size limits. The evidence documents themselves are free-form; the
// caps below bound the fields the workflow fans out on.
const (
	maxClientNameLength = 200
	maxSearchTerms      = 20
	maxSearchTermLength = 200
	maxCommentsLength   = 2000
)

// StartRunRequest is the HTTP request body for POST /v1/runs. The evidence
// documents are stored on the record verbatim, so the body reuses the record
// types directly.
type StartRunRequest struct {
	ClientID         string                   `json:"client_id"`
	ClientName       string                   `json:"client_name"`
	IDDocument       *record.IDDocument       `json:"id_document,omitempty"`
	Payslip          *record.PayslipDocument  `json:"payslip,omitempty"`
	FinancialProfile *record.FinancialProfile `json:"financial_profile,omitempty"`
	SearchTerms      []string                 `json:"search_terms,omitempty"`

	// Parsed values (populated by Validate)
	parsedClientID id.ClientID
}

// Validate normalizes the intake fields and caches the parsed client ID for
// ParsedClientID.
func (r *StartRunRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	clientID, err := id.ParseClientID(r.ClientID)
	if err != nil {
		return err
	}
	r.parsedClientID = clientID

	r.ClientName = strings.TrimSpace(r.ClientName)
	if r.ClientName == "" {
		return dErrors.New(dErrors.CodeValidation, "client_name is required")
	}
	if len(r.ClientName) > maxClientNameLength {
		return dErrors.Newf(dErrors.CodeValidation, "client_name must be at most %d characters", maxClientNameLength)
	}

	r.SearchTerms = pstrings.DedupeAndTrim(r.SearchTerms)
	if len(r.SearchTerms) > maxSearchTerms {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d search terms allowed", maxSearchTerms)
	}
	for _, term := range r.SearchTerms {
		if len(term) > maxSearchTermLength {
			return dErrors.Newf(dErrors.CodeValidation, "search term exceeds max length of %d", maxSearchTermLength)
		}
	}

	return nil
}

// ParsedClientID returns the validated client ID.
func (r *StartRunRequest) ParsedClientID() id.ClientID {
	return r.parsedClientID
}

// Data assembles the intake evidence bundle for the record.
func (r *StartRunRequest) Data() record.ClientData {
	return record.ClientData{
		IDDocument:       r.IDDocument,
		Payslip:          r.Payslip,
		FinancialProfile: r.FinancialProfile,
		SearchTerms:      r.SearchTerms,
	}
}

// IdentityDecisionRequest is the HTTP request body for
// POST /v1/runs/{runID}/identity-decision.
type IdentityDecisionRequest struct {
	// Approved is a pointer so an absent field fails validation instead of
	// silently rejecting the client.
	Approved *bool  `json:"approved"`
	Comments string `json:"comments,omitempty"`
}

func (r *IdentityDecisionRequest) Validate() error {
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
