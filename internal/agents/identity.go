package agents

import (
	"context"
	"time"

	id "provenance/pkg/domain"
	"provenance/pkg/requestcontext"

	"provenance/internal/record"
)

// Identity issue strings. The review broker and reports show these verbatim.
const (
	IssueNoIDDocument    = "No ID document found"
	IssueNoExpiryDate    = "No expiry date found"
	IssueBadExpiryFormat = "Invalid expiry date format"
	IssueDocumentExpired = "ID document has expired"
)

// dateLayout is the intake date format for document dates.
const dateLayout = "2006-01-02"

// IdentityAgent validates the intake identity document. Identity is the
// gate for every run: an unverified outcome here routes to a blocking
// human review instead of the advisory queue.
type IdentityAgent struct{}

func NewIdentityAgent() *IdentityAgent {
	return &IdentityAgent{}
}

func (a *IdentityAgent) Type() id.VerificationType {
	return id.VerificationIdentity
}

func (a *IdentityAgent) Run(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error) {
	doc := rec.ClientData.IDDocument
	if doc == nil {
		return &record.VerificationResult{
			Verified: false,
			Issues:   []string{IssueNoIDDocument},
		}, nil
	}

	var issues []string
	switch {
	case doc.ExpiryDate == "":
		issues = append(issues, IssueNoExpiryDate)
	default:
		expiry, err := time.Parse(dateLayout, doc.ExpiryDate)
		switch {
		case err != nil:
			issues = append(issues, IssueBadExpiryFormat)
		case expiry.Before(requestcontext.Now(ctx)):
			issues = append(issues, IssueDocumentExpired)
		}
	}

	fields, err := record.IdentityFields{
		FullName:       doc.FullName,
		DocumentType:   doc.DocumentType,
		DateOfBirth:    doc.DateOfBirth,
		ExpiryDate:     doc.ExpiryDate,
		DocumentNumber: doc.DocumentNumber,
		Nationality:    doc.Nationality,
	}.AsMap()
	if err != nil {
		return nil, err
	}

	return &record.VerificationResult{
		Verified: len(issues) == 0,
		Issues:   issues,
		Fields:   fields,
	}, nil
}
