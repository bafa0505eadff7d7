// Package record defines the VerificationRecord: the single JSON-serializable
// state document for one source-of-wealth verification run. Every component
// in the workflow reads from and writes to this record; the audit log inside
// it is the sole source of truth for replaying state transitions.
package record

import (
	"time"

	id "provenance/pkg/domain"
)

// VerificationResult is the outcome of one evidence check. One slot exists
// per verification type; re-running a check replaces the whole value, it
// never mutates fields in place.
type VerificationResult struct {
	Verified  bool           `json:"verified"`
	Issues    []string       `json:"issues,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// HasIssues reports whether the check surfaced at least one issue.
func (r *VerificationResult) HasIssues() bool {
	return r != nil && len(r.Issues) > 0
}

// CorroborationResult is a cross-check between two verification results,
// e.g. payslip employer against web mentions.
type CorroborationResult struct {
	Consistent bool          `json:"consistent"`
	Confidence id.Confidence `json:"confidence"`
	Details    string        `json:"details,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Requirement is one plan entry: whether a verification type is mandatory,
// why, and where it stands. Lower priority number means higher urgency.
type Requirement struct {
	Required bool                 `json:"required"`
	Reason   string               `json:"reason"`
	Status   id.RequirementStatus `json:"status"`
	Priority int                  `json:"priority"`
}

// Plan holds the dynamic verification plan. Identity is deliberately absent
// from Requirements: it is the unconditional prerequisite of every run and
// tracked outside the map.
type Plan struct {
	Requirements map[id.VerificationType]*Requirement `json:"requirements"`
	CreatedAt    time.Time                            `json:"created_at"`
	RevisedAt    *time.Time                           `json:"revised_at,omitempty"`
}

// Requirement returns the plan entry for a type, or nil when the plan or the
// entry is absent.
func (p *Plan) Requirement(t id.VerificationType) *Requirement {
	if p == nil {
		return nil
	}
	return p.Requirements[t]
}

// Requires reports whether the plan marks the type as mandatory.
func (p *Plan) Requires(t id.VerificationType) bool {
	req := p.Requirement(t)
	return req != nil && req.Required
}

// ReviewItem is one queued human review request. Items are append-only:
// the broker marks them reviewed or stale, never removes them.
type ReviewItem struct {
	ID          id.ReviewItemID     `json:"id"`
	Type        id.VerificationType `json:"verification_type"`
	ClientID    id.ClientID         `json:"client_id"`
	Payload     map[string]any      `json:"payload,omitempty"`
	Issues      []string            `json:"issues"`
	RequestedAt time.Time           `json:"requested_at"`
	Status      id.ReviewStatus     `json:"status"`
}

// QueuedReview is a review item joined with the run it belongs to, for
// cross-run reviewer work queues.
type QueuedReview struct {
	RunID id.RunID `json:"run_id"`
	ReviewItem
}

// ReviewResponse is a reviewer decision waiting to be merged into the
// record. Responses arrive asynchronously and are drained by the advisory
// step on the next router pass.
type ReviewResponse struct {
	Type       id.VerificationType `json:"verification_type"`
	Approved   bool                `json:"approved"`
	Comments   string              `json:"comments,omitempty"`
	ReviewerID id.ReviewerID       `json:"reviewer_id"`
	ReceivedAt time.Time           `json:"received_at"`
}

// ApprovalDetail is the authoritative human decision for one verification
// type. Replays for the same type overwrite rather than duplicate.
type ApprovalDetail struct {
	Approved       bool          `json:"approved"`
	ReviewDate     time.Time     `json:"review_date"`
	IssuesAtReview []string      `json:"issues_at_review,omitempty"`
	Comments       string        `json:"comments,omitempty"`
	ReviewerID     id.ReviewerID `json:"reviewer_id"`
}

// AuditEntry is one immutable line in the run's audit trail.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Result    string    `json:"result,omitempty"`
}

// Audit actions recorded on the trail. Kept as constants so replay tooling
// and tests can match on them.
const (
	AuditRunCreated      = "run_created"
	AuditPlanCreated     = "plan_created"
	AuditPlanRevised     = "plan_revised"
	AuditCheckStarted    = "verification_started"
	AuditCheckCompleted  = "verification_completed"
	AuditReviewRequested = "review_requested"
	AuditReviewReceived  = "review_response_received"
	AuditReviewResolved  = "review_resolved"
	AuditCorroborated    = "corroboration_completed"
	AuditSummarized      = "summarization_completed"
	AuditRiskAssessed    = "risk_assessment_completed"
	AuditRunAborted      = "run_aborted"
	AuditOverrideSet     = "data_readiness_override_set"
)

// Audit actors.
const (
	ActorSystem  = "system"
	ActorPlanner = "planner"
	ActorRouter  = "router"
)

// ActorAgent names the agent actor for a verification type.
func ActorAgent(t id.VerificationType) string {
	return "agent:" + t.String()
}

// ActorReviewer names a human reviewer actor.
func ActorReviewer(reviewerID id.ReviewerID) string {
	return "reviewer:" + reviewerID.String()
}

// RiskAssessment is the final deterministic score for the run. Set at most
// once, after all required checks reach a terminal status.
type RiskAssessment struct {
	Score      int          `json:"score"`
	Level      id.RiskLevel `json:"level"`
	Factors    []string     `json:"factors"`
	AssessedAt time.Time    `json:"assessed_at"`
}

// Summary is the condensed projection of the record consumed by the risk
// assessor and the report renderer.
type Summary struct {
	ClientID           id.ClientID                            `json:"client_id"`
	ClientName         string                                 `json:"client_name"`
	VerificationStatus map[id.VerificationType]SummaryStatus  `json:"verification_status"`
	IdentityDetails    *IdentitySummary                       `json:"identity_details,omitempty"`
	EmploymentDetails  *EmploymentSummary                     `json:"employment_details,omitempty"`
	WebPresence        *WebPresenceSummary                    `json:"web_presence,omitempty"`
	RiskIndicators     []string                               `json:"risk_indicators"`
	GeneratedAt        time.Time                              `json:"generated_at"`
}

// IdentitySummary carries the identity fields the report renderer shows.
type IdentitySummary struct {
	FullName     string `json:"full_name,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
}

// EmploymentSummary carries the payslip-derived employment view. AnnualIncome
// is the normalized monthly figure annualized, not the declared range.
type EmploymentSummary struct {
	Employer      string `json:"employer,omitempty"`
	EmployeeName  string `json:"employee_name,omitempty"`
	Position      string `json:"position,omitempty"`
	MonthlyIncome string `json:"monthly_income,omitempty"`
	AnnualIncome  string `json:"annual_income,omitempty"`
	PayFrequency  string `json:"pay_frequency,omitempty"`
}

// WebPresenceSummary condenses the web references result. Mentions keeps at
// most the first three discoveries in original order.
type WebPresenceSummary struct {
	Mentioned        bool         `json:"mentioned"`
	MentionCount     int          `json:"mention_count"`
	Mentions         []WebMention `json:"mentions,omitempty"`
	OverallSentiment string       `json:"overall_sentiment,omitempty"`
	RiskFlags        []string     `json:"risk_flags,omitempty"`
}

// ClientData is the evidence bundle supplied at intake. Agents read from it;
// nothing in the workflow mutates it after creation.
type ClientData struct {
	IDDocument       *IDDocument       `json:"id_document,omitempty"`
	Payslip          *PayslipDocument  `json:"payslip,omitempty"`
	FinancialProfile *FinancialProfile `json:"financial_profile,omitempty"`
	SearchTerms      []string          `json:"search_terms,omitempty"`
}

// IDDocument is the identity document submitted at intake. Dates use
// YYYY-MM-DD.
type IDDocument struct {
	DocumentType   string `json:"document_type,omitempty"`
	FullName       string `json:"full_name,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
}

// PayslipDocument is the payslip submitted at intake. Monetary amounts are
// decimal strings to avoid float drift.
type PayslipDocument struct {
	EmployeeName string `json:"employee_name,omitempty"`
	Employer     string `json:"employer,omitempty"`
	Position     string `json:"position,omitempty"`
	GrossPay     string `json:"gross_pay,omitempty"`
	NetPay       string `json:"net_pay,omitempty"`
	PayFrequency string `json:"pay_frequency,omitempty"`
	PayDate      string `json:"pay_date,omitempty"`
}

// FinancialProfile is the client's declared financial position.
type FinancialProfile struct {
	DeclaredAnnualIncome string `json:"declared_annual_income,omitempty"` // "min - max" range
	NetWorth             string `json:"net_worth,omitempty"`
	SourceOfWealth       string `json:"source_of_wealth,omitempty"`
}
