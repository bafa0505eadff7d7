// Package summary projects a full verification record into the condensed
// structure consumed by the risk assessor and the report renderer.
//
// This is pure domain logic - no I/O, no side effects. Building the summary
// twice from the same record yields identical output.
package summary

import (
	"strings"

	"github.com/shopspring/decimal"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"

	"provenance/internal/record"
)

// Risk indicator strings. The risk assessor matches and deduplicates on
// these exact values, so they are constants rather than formatted inline.
const (
	IndicatorIdentityFailed = "ID verification failed or incomplete"
	IndicatorPayslipFailed  = "Payslip verification failed or incomplete"
)

// Overall sentiment labels. Mention analyses carry the same vocabulary;
// matching is case-insensitive and unknown labels count as neutral.
const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

var monthsPerYear = decimal.NewFromInt(12)

// maxSummaryMentions caps how many web mentions the summary carries. The
// first discoveries, in original order, are the ones shown to reviewers.
const maxSummaryMentions = 3

// Summarizer builds summaries. Stateless.
type Summarizer struct{}

// New creates a Summarizer.
func New() *Summarizer {
	return &Summarizer{}
}

// Build produces the summary projection of a record.
func (s *Summarizer) Build(rec *record.VerificationRecord) (*record.Summary, error) {
	out := &record.Summary{
		ClientID:           rec.ClientID,
		ClientName:         rec.ClientName,
		VerificationStatus: verificationStatus(rec),
		RiskIndicators:     []string{},
	}

	identityResult := rec.Result(id.VerificationIdentity)
	identityFields, err := record.IdentityFieldsOf(identityResult)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity fields")
	}
	if identityResult != nil {
		out.IdentityDetails = &record.IdentitySummary{
			FullName:     identityFields.FullName,
			DocumentType: identityFields.DocumentType,
			DateOfBirth:  identityFields.DateOfBirth,
			ExpiryDate:   identityFields.ExpiryDate,
		}
	}

	payslipResult := rec.Result(id.VerificationPayslip)
	payslipFields, err := record.PayslipFieldsOf(payslipResult)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read payslip fields")
	}
	if payslipResult != nil {
		out.EmploymentDetails = &record.EmploymentSummary{
			Employer:      payslipFields.Employer,
			EmployeeName:  payslipFields.EmployeeName,
			Position:      payslipFields.Position,
			MonthlyIncome: payslipFields.MonthlyIncome,
			AnnualIncome:  annualIncome(payslipFields.MonthlyIncome),
			PayFrequency:  payslipFields.PayFrequency,
		}
	}

	webResult := rec.Result(id.VerificationWebReferences)
	webFields, err := record.WebReferencesFieldsOf(webResult)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read web references fields")
	}
	if webResult != nil {
		mentions := webFields.Mentions
		if len(mentions) > maxSummaryMentions {
			mentions = mentions[:maxSummaryMentions]
		}
		out.WebPresence = &record.WebPresenceSummary{
			Mentioned:        len(webFields.Mentions) > 0,
			MentionCount:     len(webFields.Mentions),
			Mentions:         mentions,
			OverallSentiment: overallSentiment(webFields.Mentions),
			RiskFlags:        webFields.RiskFlags,
		}
	}

	// Risk indicators, in fixed collection order: identity, payslip,
	// financial, web.
	//
	// An unverified check contributes its failure indicator; a verified one
	// contributes its warnings instead. The payslip indicator only applies
	// when the plan actually demands a payslip, otherwise a run with no
	// employment evidence would be penalized twice for the same gap.
	if identityResult == nil || !identityResult.Verified {
		out.RiskIndicators = append(out.RiskIndicators, IndicatorIdentityFailed)
	} else {
		out.RiskIndicators = append(out.RiskIndicators, record.ResultWarnings(identityResult)...)
	}

	if rec.Plan.Requires(id.VerificationPayslip) && (payslipResult == nil || !payslipResult.Verified) {
		out.RiskIndicators = append(out.RiskIndicators, IndicatorPayslipFailed)
	} else if payslipResult != nil && payslipResult.Verified {
		out.RiskIndicators = append(out.RiskIndicators, record.ResultWarnings(payslipResult)...)
	}

	if financialResult := rec.Result(id.VerificationFinancialReports); financialResult != nil && financialResult.Verified {
		out.RiskIndicators = append(out.RiskIndicators, record.ResultWarnings(financialResult)...)
	}

	out.RiskIndicators = append(out.RiskIndicators, webFields.RiskFlags...)

	return out, nil
}

// annualIncome annualizes the normalized monthly income. An absent or
// unreadable monthly figure yields no annual one.
func annualIncome(monthly string) string {
	m, err := decimal.NewFromString(monthly)
	if err != nil {
		return ""
	}
	return m.Mul(monthsPerYear).String()
}

// overallSentiment condenses per-mention sentiments into one label: the
// majority of positive versus negative analyses wins, a tie or an all-neutral
// profile reads as neutral. No mentions means no sentiment at all.
func overallSentiment(mentions []record.WebMention) string {
	if len(mentions) == 0 {
		return ""
	}
	positive, negative := 0, 0
	for _, m := range mentions {
		if m.Analysis == nil {
			continue
		}
		switch strings.ToLower(m.Analysis.Sentiment) {
		case "positive":
			positive++
		case "negative":
			negative++
		}
	}
	switch {
	case negative > positive:
		return SentimentNegative
	case positive > negative:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// verificationStatus flattens per-type outcomes. Plan-exempted payslip and
// financial checks surface as "Not Required" rather than false so the
// report does not imply a failure that was never demanded.
func verificationStatus(rec *record.VerificationRecord) map[id.VerificationType]record.SummaryStatus {
	status := make(map[id.VerificationType]record.SummaryStatus, 4)

	status[id.VerificationIdentity] = record.StatusVerified(resultVerified(rec, id.VerificationIdentity))
	status[id.VerificationWebReferences] = record.StatusVerified(resultVerified(rec, id.VerificationWebReferences))

	for _, t := range []id.VerificationType{id.VerificationPayslip, id.VerificationFinancialReports} {
		switch {
		case rec.Result(t) != nil:
			status[t] = record.StatusVerified(rec.Result(t).Verified)
		case !rec.Plan.Requires(t):
			status[t] = record.StatusNotRequired()
		default:
			status[t] = record.StatusVerified(false)
		}
	}

	return status
}

func resultVerified(rec *record.VerificationRecord, t id.VerificationType) bool {
	res := rec.Result(t)
	return res != nil && res.Verified
}
