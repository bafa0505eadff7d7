package domain

import dErrors "provenance/pkg/domain-errors"

// VerificationType is a domain value that identifies one kind of evidence
// check in a verification run.
// Invariant: the value must be one of the supported verification types.
//
// Usage: construct via ParseVerificationType at trust boundaries to enforce
// the allowlist; direct casting bypasses validation.
type VerificationType string

// Supported verification types.
const (
	VerificationIdentity         VerificationType = "identity"
	VerificationPayslip          VerificationType = "payslip"
	VerificationWebReferences    VerificationType = "web_references"
	VerificationFinancialReports VerificationType = "financial_reports"
)

// validVerificationTypes is the single source of truth for valid types.
var validVerificationTypes = map[VerificationType]bool{
	VerificationIdentity:         true,
	VerificationPayslip:          true,
	VerificationWebReferences:    true,
	VerificationFinancialReports: true,
}

// canonicalTypeOrder fixes the presentation and tie-break order for
// verification types wherever a deterministic ordering is required.
var canonicalTypeOrder = map[VerificationType]int{
	VerificationIdentity:         0,
	VerificationPayslip:          1,
	VerificationWebReferences:    2,
	VerificationFinancialReports: 3,
}

// ParseVerificationType constructs a VerificationType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseVerificationType(s string) (VerificationType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verification type cannot be empty")
	}
	t := VerificationType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid verification type")
	}
	return t, nil
}

// IsValid checks if the verification type is one of the supported values.
func (t VerificationType) IsValid() bool {
	return validVerificationTypes[t]
}

// String returns the string representation of the verification type.
func (t VerificationType) String() string {
	return string(t)
}

// CanonicalOrder returns the fixed ordinal of the type, used as a
// deterministic tie-break when priorities are equal. Unknown types sort
// last.
func (t VerificationType) CanonicalOrder() int {
	if ord, ok := canonicalTypeOrder[t]; ok {
		return ord
	}
	return len(canonicalTypeOrder)
}

// VerificationTypes returns all supported types in canonical order.
func VerificationTypes() []VerificationType {
	return []VerificationType{
		VerificationIdentity,
		VerificationPayslip,
		VerificationWebReferences,
		VerificationFinancialReports,
	}
}

// RequirementStatus tracks one planned verification step through its
// lifecycle.
type RequirementStatus string

const (
	RequirementPending    RequirementStatus = "pending"
	RequirementInProgress RequirementStatus = "in_progress"
	RequirementCompleted  RequirementStatus = "completed"
	RequirementFailed     RequirementStatus = "failed"
	RequirementSkipped    RequirementStatus = "skipped"
)

var validRequirementStatuses = map[RequirementStatus]bool{
	RequirementPending:    true,
	RequirementInProgress: true,
	RequirementCompleted:  true,
	RequirementFailed:     true,
	RequirementSkipped:    true,
}

// IsValid checks if the status is one of the supported values.
func (s RequirementStatus) IsValid() bool {
	return validRequirementStatuses[s]
}

// IsTerminal reports whether the step can make no further progress.
func (s RequirementStatus) IsTerminal() bool {
	return s == RequirementCompleted || s == RequirementFailed || s == RequirementSkipped
}

// String returns the string representation of the status.
func (s RequirementStatus) String() string { return string(s) }

// ReviewStatus tracks a queued human review item.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewReviewed ReviewStatus = "reviewed"
	ReviewStale    ReviewStatus = "stale"
)

// String returns the string representation of the review status.
func (s ReviewStatus) String() string { return string(s) }

// Confidence grades how strongly a corroboration supports the client's
// declared source of wealth.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// CorroborationType identifies one cross-check between evidence sources.
type CorroborationType string

const (
	CorroborationEmployment CorroborationType = "employment"
	CorroborationFunds      CorroborationType = "funds"
)

// RiskLevel is the coarse banding of a computed risk score.
type RiskLevel string

const (
	RiskLow        RiskLevel = "Low"
	RiskMediumLow  RiskLevel = "Medium-Low"
	RiskMedium     RiskLevel = "Medium"
	RiskMediumHigh RiskLevel = "Medium-High"
	RiskHigh       RiskLevel = "High"
)

// String returns the string representation of the risk level.
func (l RiskLevel) String() string { return string(l) }
