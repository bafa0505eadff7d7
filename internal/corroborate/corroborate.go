// Package corroborate cross-checks pairs of verification results for mutual
// consistency. Results are advisory: they feed confidence and risk factors
// but never gate routing.
package corroborate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "provenance/pkg/domain"

	"provenance/internal/record"
)

// Details strings surface in risk factors and reports, so they are fixed.
const (
	detailIncomeConsistent = "Declared income matches financial position"
	detailIncomeMismatch   = "Potential discrepancy in income"
	detailNoEmployer       = "No employer extracted from payslip"
)

// Corroborator computes cross-checks from a record's verification results.
// Stateless; all inputs come from the record.
type Corroborator struct{}

func New() *Corroborator {
	return &Corroborator{}
}

// Employment checks the payslip employer against web mentions. The second
// return is false while either input result is still missing.
//
// The employer corroborates when it appears in any mention's details text or
// in a mention's extracted company, compared case-insensitively.
func (c *Corroborator) Employment(rec *record.VerificationRecord, now time.Time) (*record.CorroborationResult, bool) {
	payslipRes := rec.Result(id.VerificationPayslip)
	webRes := rec.Result(id.VerificationWebReferences)
	if payslipRes == nil || webRes == nil {
		return nil, false
	}

	payslip, err := record.PayslipFieldsOf(payslipRes)
	if err != nil {
		return nil, false
	}
	web, err := record.WebReferencesFieldsOf(webRes)
	if err != nil {
		return nil, false
	}

	employer := strings.TrimSpace(payslip.Employer)
	if employer == "" {
		return &record.CorroborationResult{
			Consistent: false,
			Confidence: id.ConfidenceLow,
			Details:    detailNoEmployer,
			CheckedAt:  now,
		}, true
	}

	needle := strings.ToLower(employer)
	for _, mention := range web.Mentions {
		if strings.Contains(strings.ToLower(mention.Details), needle) {
			return employmentMatch(employer, now), true
		}
		if mention.Analysis != nil && strings.EqualFold(strings.TrimSpace(mention.Analysis.Company), employer) {
			return employmentMatch(employer, now), true
		}
	}

	return &record.CorroborationResult{
		Consistent: false,
		Confidence: id.ConfidenceLow,
		Details:    fmt.Sprintf("Employer %q not found in web references", employer),
		CheckedAt:  now,
	}, true
}

func employmentMatch(employer string, now time.Time) *record.CorroborationResult {
	return &record.CorroborationResult{
		Consistent: true,
		Confidence: id.ConfidenceHigh,
		Details:    fmt.Sprintf("Employer %q corroborated by web references", employer),
		CheckedAt:  now,
	}
}

// Funds checks the payslip-derived annual income against the client's
// declared annual income range. The second return is false while the payslip
// result or the declared range is missing.
//
// Annual income is monthly income times twelve; monthly income falls back to
// gross pay when the payslip carried no recognizable pay frequency.
// Consistent means the annual figure lands inside the declared range, with
// High confidence when it lands in the middle half of the range.
func (c *Corroborator) Funds(rec *record.VerificationRecord, now time.Time) (*record.CorroborationResult, bool) {
	payslipRes := rec.Result(id.VerificationPayslip)
	if payslipRes == nil {
		return nil, false
	}
	profile := rec.ClientData.FinancialProfile
	if profile == nil || strings.TrimSpace(profile.DeclaredAnnualIncome) == "" {
		return nil, false
	}

	payslip, err := record.PayslipFieldsOf(payslipRes)
	if err != nil {
		return nil, false
	}

	mismatch := &record.CorroborationResult{
		Consistent: false,
		Confidence: id.ConfidenceLow,
		Details:    detailIncomeMismatch,
		CheckedAt:  now,
	}

	monthly := strings.TrimSpace(payslip.MonthlyIncome)
	if monthly == "" {
		monthly = strings.TrimSpace(payslip.GrossPay)
	}
	monthlyIncome, err := decimal.NewFromString(monthly)
	if err != nil {
		return mismatch, true
	}
	annual := monthlyIncome.Mul(decimal.NewFromInt(12))

	min, max, err := parseIncomeRange(profile.DeclaredAnnualIncome)
	if err != nil {
		return mismatch, true
	}

	if annual.Cmp(min) < 0 || annual.Cmp(max) > 0 {
		return mismatch, true
	}

	confidence := id.ConfidenceMedium
	quarter := max.Sub(min).Div(decimal.NewFromInt(4))
	if annual.Cmp(min.Add(quarter)) >= 0 && annual.Cmp(max.Sub(quarter)) <= 0 {
		confidence = id.ConfidenceHigh
	}

	return &record.CorroborationResult{
		Consistent: true,
		Confidence: confidence,
		Details:    detailIncomeConsistent,
		CheckedAt:  now,
	}, true
}

// parseIncomeRange parses a declared "min - max" range, tolerating thousands
// separators ("100,000 - 200,000").
func parseIncomeRange(s string) (min, max decimal.Decimal, err error) {
	parts := strings.SplitN(strings.ReplaceAll(s, ",", ""), " - ", 2)
	if len(parts) != 2 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("income range %q: want \"min - max\"", s)
	}
	min, err = decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("income range %q: %w", s, err)
	}
	max, err = decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("income range %q: %w", s, err)
	}
	if max.Cmp(min) < 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("income range %q: min exceeds max", s)
	}
	return min, max, nil
}
