// Package risk converts the aggregate of verification outcomes, plan
// requirements, and human decisions into a deterministic score and level.
//
// This is pure domain logic - no I/O, no side effects. Scoring is additive
// and commutative; the factors list is emitted in a fixed canonical order
// (identity, payslip, web, financial, corroborations, human rejections) so
// two assessments of the same record are identical.
package risk

import (
	"fmt"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"

	"provenance/internal/record"
)

// Factor strings for the fixed scoring rules.
const (
	FactorIdentityFailed  = "ID verification failed or missing"
	FactorPayslipFailed   = "Required payslip verification failed or missing"
	FactorWebFailed       = "Web references check failed or missing"
	FactorFinancialFailed = "Required financial reports verification failed or missing"
)

// Point values. There is no upper clamp: a pathological record can score
// past 100 and still lands in the High band.
const (
	pointsIdentity      = 30
	pointsPayslip       = 25
	pointsWeb           = 15
	pointsFinancial     = 20
	pointsIndicator     = 10
	pointsCorroboration = 10
	pointsRejection     = 15
)

// Assessor computes risk assessments. Stateless.
type Assessor struct{}

// New creates an Assessor.
func New() *Assessor {
	return &Assessor{}
}

// Assess scores a record. The summary must already be built; the router
// never reaches risk assessment before summarization.
func (a *Assessor) Assess(rec *record.VerificationRecord) (*record.RiskAssessment, error) {
	if rec.Summary == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "risk assessment requires a summary")
	}

	score := 0
	factors := []string{}
	seen := map[string]bool{}

	add := func(points int, factor string) {
		score += points
		factors = append(factors, factor)
		seen[factor] = true
	}

	// Identity: a human override lets the workflow continue, but it does
	// not make the document verified. The failed document stays a factor.
	if !resultVerified(rec, id.VerificationIdentity) {
		add(pointsIdentity, FactorIdentityFailed)
	}

	// Payslip: only penalized when the plan demanded one.
	if rec.Plan.Requires(id.VerificationPayslip) && !resultVerified(rec, id.VerificationPayslip) {
		add(pointsPayslip, FactorPayslipFailed)
	}

	// Web references: always implicitly expected.
	if !resultVerified(rec, id.VerificationWebReferences) {
		add(pointsWeb, FactorWebFailed)
	}

	// Financial reports: only penalized when the plan demanded them.
	if rec.Plan.Requires(id.VerificationFinancialReports) && !resultVerified(rec, id.VerificationFinancialReports) {
		add(pointsFinancial, FactorFinancialFailed)
	}

	// Summary risk indicators, deduplicated against the rule factors above
	// and against each other.
	for _, indicator := range rec.Summary.RiskIndicators {
		if indicator == "" || seen[indicator] {
			continue
		}
		add(pointsIndicator, indicator)
	}

	// Inconsistent corroborations.
	for _, t := range []id.CorroborationType{id.CorroborationEmployment, id.CorroborationFunds} {
		corr := rec.CorroborationResults[t]
		if corr == nil || corr.Consistent {
			continue
		}
		factor := fmt.Sprintf("Inconsistent %s corroboration: %s", t, corr.Details)
		if seen[factor] {
			continue
		}
		add(pointsCorroboration, factor)
	}

	// Human rejections, in canonical type order for determinism.
	for _, t := range id.VerificationTypes() {
		approval := rec.Approval(t)
		if approval == nil || approval.Approved {
			continue
		}
		add(pointsRejection, fmt.Sprintf("Human reviewer rejected %s check", t))
	}

	return &record.RiskAssessment{
		Score:   score,
		Level:   LevelForScore(score),
		Factors: factors,
	}, nil
}

// LevelForScore maps a total score to its band. Lower bounds are inclusive.
func LevelForScore(score int) id.RiskLevel {
	switch {
	case score == 0:
		return id.RiskLow
	case score < 30:
		return id.RiskMediumLow
	case score < 50:
		return id.RiskMedium
	case score < 70:
		return id.RiskMediumHigh
	default:
		return id.RiskHigh
	}
}

func resultVerified(rec *record.VerificationRecord, t id.VerificationType) bool {
	res := rec.Result(t)
	return res != nil && res.Verified
}
