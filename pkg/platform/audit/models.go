package audit

import (
	"time"

	id "provenance/pkg/domain"
)

// EventCategory splits the audit stream by consumer: compliance rows are the
// regulator-facing record, security rows feed the SIEM export, ops rows are
// droppable telemetry. Retention and delivery guarantees differ per category,
// which is why the publishers and the materialized tables do too.
type EventCategory string

const (
	// CategoryCompliance marks events a regulator can demand years later:
	// review decisions, run outcomes, risk assessments. Never sampled.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity marks reviewer authentication and account activity
	// for monitoring and forensics.
	CategorySecurity EventCategory = "security"

	// CategoryOperations marks routine workflow activity. Short retention,
	// may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is the flat row every category funnels into for the outbox and the
// audit_events table. Domain code emits the typed events below; they flatten
// into this.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	RunID     id.RunID
	ClientID  id.ClientID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	// ReviewerID tracks the human who performed the action when one did.
	// This is a string so system actors ("system", "planner") fit too.
	ReviewerID string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// IP is the client address behind security events.
	IP string
	// DeviceLabel is the parsed user-agent summary for reviewer actions,
	// e.g. "Chrome on macOS". Only populated on review and login events.
	DeviceLabel string
	// Severity carries the SIEM routing level for security events.
	Severity string
}

// AuditEvent names one auditable action. The name doubles as the Kafka
// event_type and the action column in the materialized tables.
type AuditEvent string

const (
	// Run lifecycle events
	EventRunStarted   AuditEvent = "run_started"
	EventRunSuspended AuditEvent = "run_suspended"
	EventRunResumed   AuditEvent = "run_resumed"
	EventRunCompleted AuditEvent = "run_completed"
	EventRunAborted   AuditEvent = "run_aborted"

	// Workflow events
	EventCheckCompleted          AuditEvent = "check_completed"
	EventPlanRevised             AuditEvent = "plan_revised"
	EventCorroborationCompleted  AuditEvent = "corroboration_completed"
	EventSummaryGenerated        AuditEvent = "summary_generated"
	EventRiskAssessed            AuditEvent = "risk_assessed"
	EventDataReadinessOverridden AuditEvent = "data_readiness_overridden"

	// Review events
	EventReviewRequested AuditEvent = "review_requested"
	EventReviewSubmitted AuditEvent = "review_submitted"
	EventIdentityDecided AuditEvent = "identity_decided"

	// Reviewer account events
	EventReviewerCreated     AuditEvent = "reviewer_created"
	EventReviewerLoggedIn    AuditEvent = "reviewer_logged_in"
	EventReviewerLoginFailed AuditEvent = "reviewer_login_failed"
)

// eventCategories routes each action to its retention class. The outbox
// write derives the stored category from this map rather than trusting the
// caller, so adding an action here is the one place that decides how long
// its rows live.
var eventCategories = map[AuditEvent]EventCategory{
	// Every human decision and every run outcome is compliance.
	EventRunCompleted:    CategoryCompliance,
	EventRunAborted:      CategoryCompliance,
	EventReviewSubmitted: CategoryCompliance,
	EventIdentityDecided: CategoryCompliance,
	EventRiskAssessed:    CategoryCompliance,
	EventReviewerCreated: CategoryCompliance,

	EventReviewerLoggedIn:    CategorySecurity,
	EventReviewerLoginFailed: CategorySecurity,

	EventRunStarted:              CategoryOperations,
	EventRunSuspended:            CategoryOperations,
	EventRunResumed:              CategoryOperations,
	EventCheckCompleted:          CategoryOperations,
	EventPlanRevised:             CategoryOperations,
	EventCorroborationCompleted:  CategoryOperations,
	EventSummaryGenerated:        CategoryOperations,
	EventDataReadinessOverridden: CategoryOperations,
	EventReviewRequested:         CategoryOperations,
}

// Category returns the routing category for the action. Unknown actions get
// operations retention rather than silently inflating the compliance table.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent is what domain code hands the fail-closed publisher when a
// decision of record happens. RunID is required; the materializer drops rows
// without one.
type ComplianceEvent struct {
	Timestamp  time.Time // zero means the publisher stamps emit time
	RunID      id.RunID
	ClientID   id.ClientID
	Subject    string
	Action     string
	Decision   string
	ReviewerID string // empty when the system decided
	RequestID  string
}

// Flatten widens the event into the generic outbox row.
func (e ComplianceEvent) Flatten() Event {
	return Event{
		Category:   CategoryCompliance,
		Timestamp:  e.Timestamp,
		RunID:      e.RunID,
		ClientID:   e.ClientID,
		Subject:    e.Subject,
		Action:     e.Action,
		Decision:   e.Decision,
		ReviewerID: e.ReviewerID,
		RequestID:  e.RequestID,
	}
}

// SecurityEvent is what reviewer authentication paths hand the buffered
// publisher. Emission never blocks a login; delivery is best-effort with
// eviction under pressure.
type SecurityEvent struct {
	Timestamp   time.Time // zero means the publisher stamps emit time
	Subject     string    // reviewer email or token subject
	Action      string
	Reason      string // machine-readable cause, e.g. "invalid_password"
	IP          string
	RequestID   string
	ReviewerID  string
	DeviceLabel string // parsed user agent, e.g. "Chrome on Mac OS X"
	Severity    Severity
}

// Severity is the SIEM routing level for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Flatten widens the event into the generic outbox row.
func (e SecurityEvent) Flatten() Event {
	return Event{
		Category:    CategorySecurity,
		Timestamp:   e.Timestamp,
		Subject:     e.Subject,
		Action:      e.Action,
		Reason:      e.Reason,
		ReviewerID:  e.ReviewerID,
		RequestID:   e.RequestID,
		IP:          e.IP,
		DeviceLabel: e.DeviceLabel,
		Severity:    string(e.Severity),
	}
}

// OpsEvent is the sampled fire-and-forget telemetry shape. RunID is set when
// the event is run-scoped.
type OpsEvent struct {
	Timestamp time.Time // zero means the tracker stamps emit time
	RunID     id.RunID
	Subject   string
	Action    string
	RequestID string
}

// Flatten widens the event into the generic outbox row.
func (e OpsEvent) Flatten() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}
