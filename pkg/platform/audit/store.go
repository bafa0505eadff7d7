package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "provenance/pkg/domain"
)

// Store persists audit events and serves run-scoped queries. The postgres
// implementation writes through a transactional outbox; the memory one is
// for tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRun(ctx context.Context, runID id.RunID) ([]Event, error)
}

// Kafka topics, one per event category. Retention differs per topic:
// compliance events are kept for years, ops events for days.
const (
	TopicCompliance = "audit.compliance"
	TopicSecurity   = "audit.security"
	TopicOps        = "audit.ops"
)

// TopicFor returns the Kafka topic for a category.
func TopicFor(category EventCategory) string {
	switch category {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOps
	}
}

// Topics lists every audit topic, for EnsureTopics at startup.
func Topics() []string {
	return []string{TopicCompliance, TopicSecurity, TopicOps}
}

// OutboxEntry is one unpublished row from the transactional outbox. ID is
// the event ID and doubles as the Kafka message key, which is what makes
// consumer-side inserts idempotent.
type OutboxEntry struct {
	ID        uuid.UUID
	Action    string
	Payload   []byte
	CreatedAt time.Time
}

// Topic returns the Kafka topic this entry publishes to, derived from the
// action's category.
func (e OutboxEntry) Topic() string {
	return TopicFor(AuditEvent(e.Action).Category())
}

// ComplianceRecord is a compliance event materialized from Kafka into the
// audit_compliance table.
type ComplianceRecord struct {
	Timestamp  time.Time
	RunID      id.RunID
	ClientID   string
	Subject    string
	Action     string
	Decision   string
	ReviewerID string
	RequestID  string
}

// SecurityRecord is a security event materialized from Kafka into the
// audit_security table.
type SecurityRecord struct {
	Timestamp   time.Time
	Subject     string
	Action      string
	Reason      string
	IP          string
	RequestID   string
	ReviewerID  string
	DeviceLabel string
	Severity    string
}

// OpsRecord is an operational event materialized from Kafka into the
// audit_ops table.
type OpsRecord struct {
	Timestamp time.Time
	RunID     id.RunID
	Subject   string
	Action    string
	RequestID string
}
