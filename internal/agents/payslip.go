package agents

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	id "provenance/pkg/domain"

	"provenance/internal/record"
)

// Payslip issue strings.
const (
	IssueNoPayslip           = "No payslip document found"
	IssueMissingEmployeeName = "Missing employee name"
	IssueMissingEmployer     = "Missing employer"
	IssueMissingGrossPay     = "Missing gross pay"
	IssueMissingNetPay       = "Missing net pay"
	IssueInvalidGrossPay     = "Invalid gross pay amount"
	IssueInvalidNetPay       = "Invalid net pay amount"
	IssueNetExceedsGross     = "Net pay is greater than gross pay"
)

var (
	weeksPerMonth      = decimal.RequireFromString("4.33")
	fortnightsPerMonth = decimal.RequireFromString("2.17")
	monthsPerYear      = decimal.NewFromInt(12)
)

// PayslipAgent validates the intake payslip and derives the normalized
// monthly income used by funds corroboration and the summary.
type PayslipAgent struct{}

func NewPayslipAgent() *PayslipAgent {
	return &PayslipAgent{}
}

func (a *PayslipAgent) Type() id.VerificationType {
	return id.VerificationPayslip
}

func (a *PayslipAgent) Run(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error) {
	doc := rec.ClientData.Payslip
	if doc == nil {
		return &record.VerificationResult{
			Verified: false,
			Issues:   []string{IssueNoPayslip},
		}, nil
	}

	var issues []string
	if strings.TrimSpace(doc.EmployeeName) == "" {
		issues = append(issues, IssueMissingEmployeeName)
	}
	if strings.TrimSpace(doc.Employer) == "" {
		issues = append(issues, IssueMissingEmployer)
	}

	gross, grossOK := parseAmount(doc.GrossPay, &issues, IssueMissingGrossPay, IssueInvalidGrossPay)
	net, netOK := parseAmount(doc.NetPay, &issues, IssueMissingNetPay, IssueInvalidNetPay)
	if grossOK && netOK && net.Cmp(gross) > 0 {
		issues = append(issues, IssueNetExceedsGross)
	}

	payslip := record.PayslipFields{
		EmployeeName: doc.EmployeeName,
		Employer:     doc.Employer,
		Position:     doc.Position,
		GrossPay:     doc.GrossPay,
		NetPay:       doc.NetPay,
		PayFrequency: doc.PayFrequency,
	}
	if grossOK {
		payslip.MonthlyIncome = monthlyIncome(gross, doc.PayFrequency).String()
	}

	fields, err := payslip.AsMap()
	if err != nil {
		return nil, err
	}

	return &record.VerificationResult{
		Verified: len(issues) == 0,
		Issues:   issues,
		Fields:   fields,
	}, nil
}

// parseAmount validates one monetary field, appending the right issue when
// it is absent or unreadable.
func parseAmount(raw string, issues *[]string, missingIssue, invalidIssue string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*issues = append(*issues, missingIssue)
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		*issues = append(*issues, invalidIssue)
		return decimal.Zero, false
	}
	return amount, true
}

// monthlyIncome normalizes a gross amount to a monthly figure based on the
// payslip's pay frequency. Unknown frequencies pass the amount through; the
// fortnight cases must match before the bare "week" substring.
func monthlyIncome(gross decimal.Decimal, frequency string) decimal.Decimal {
	f := strings.ToLower(frequency)
	switch {
	case strings.Contains(f, "fortnight"), strings.Contains(f, "bi-week"), strings.Contains(f, "biweek"):
		return gross.Mul(fortnightsPerMonth)
	case strings.Contains(f, "week"):
		return gross.Mul(weeksPerMonth)
	case strings.Contains(f, "month"):
		return gross
	case strings.Contains(f, "year"), strings.Contains(f, "annual"):
		return gross.Div(monthsPerYear)
	default:
		return gross
	}
}
