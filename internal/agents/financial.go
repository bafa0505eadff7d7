package agents

import (
	"context"

	id "provenance/pkg/domain"

	"provenance/internal/record"
)

// Financial reports issue strings.
const (
	IssueNoFinancialProfile = "No financial profile found"
)

// FinancialReportsAgent verifies the client's declared financial position.
// It is the mandatory fallback check when a run surfaces no employment
// evidence.
type FinancialReportsAgent struct{}

func NewFinancialReportsAgent() *FinancialReportsAgent {
	return &FinancialReportsAgent{}
}

func (a *FinancialReportsAgent) Type() id.VerificationType {
	return id.VerificationFinancialReports
}

func (a *FinancialReportsAgent) Run(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error) {
	profile := rec.ClientData.FinancialProfile
	if profile == nil {
		return &record.VerificationResult{
			Verified: false,
			Issues:   []string{IssueNoFinancialProfile},
		}, nil
	}

	fields, err := (record.FinancialFields{
		EstimatedAnnualIncome: profile.DeclaredAnnualIncome,
		NetWorth:              profile.NetWorth,
		SourceOfWealth:        profile.SourceOfWealth,
	}).AsMap()
	if err != nil {
		return nil, err
	}

	return &record.VerificationResult{
		Verified: true,
		Fields:   fields,
	}, nil
}
