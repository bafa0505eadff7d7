// Package postgres persists audit events through a transactional outbox.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
	txcontext "provenance/pkg/platform/tx"
)

// Store writes audit events into the outbox table. The outbox worker relays
// rows to Kafka and the consumers materialize them into the query tables, so
// the outbox insert is the durability point for the whole trail.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// writer returns the ambient transaction when the caller opened one, so an
// audit row commits or rolls back together with the state change it records.
func (s *Store) writer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON shape relayed to Kafka. The consumers decode by
// these exact field names.
type outboxPayload struct {
	ID          string `json:"ID"`
	Category    string `json:"Category"`
	Timestamp   string `json:"Timestamp"`
	RunID       string `json:"RunID,omitempty"`
	ClientID    string `json:"ClientID,omitempty"`
	Subject     string `json:"Subject"`
	Action      string `json:"Action"`
	Decision    string `json:"Decision,omitempty"`
	Reason      string `json:"Reason,omitempty"`
	ReviewerID  string `json:"ReviewerID,omitempty"`
	RequestID   string `json:"RequestID,omitempty"`
	IP          string `json:"IP,omitempty"`
	DeviceLabel string `json:"DeviceLabel,omitempty"`
	Severity    string `json:"Severity,omitempty"`
}

// Append writes one event to the outbox. The generated event ID is the outbox
// primary key and, downstream, the Kafka message key, which is what keeps the
// materializers idempotent under redelivery.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// The category is derived from the action here rather than trusted from
	// the caller, so the outbox cannot carry a category the consumer routing
	// disagrees with.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:          eventID.String(),
		Category:    string(category),
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
		Subject:     event.Subject,
		Action:      event.Action,
		Decision:    event.Decision,
		Reason:      event.Reason,
		ReviewerID:  event.ReviewerID,
		RequestID:   event.RequestID,
		IP:          event.IP,
		DeviceLabel: event.DeviceLabel,
		Severity:    event.Severity,
	}
	if !event.RunID.IsNil() {
		payload.RunID = uuid.UUID(event.RunID).String()
	}
	if !event.ClientID.IsNil() {
		payload.ClientID = event.ClientID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Events aggregate under their run when they have one. Reviewer events
	// that precede any run aggregate under themselves.
	aggregateType, aggregateID := "audit", eventID.String()
	if !event.RunID.IsNil() {
		aggregateType, aggregateID = "run", uuid.UUID(event.RunID).String()
	}

	_, err = s.writer(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		eventID, aggregateType, aggregateID, event.Action, payloadBytes, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// NextBatch returns up to limit unpublished outbox entries, oldest first. The
// worker publishes them to Kafka and calls MarkPublished.
func (s *Store) NextBatch(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps outbox entries after a successful Kafka publish so the
// next batch does not pick them up again.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// eventColumns is the audit_events column list shared by the read queries and
// scanEvents. The two must stay in the same order.
const eventColumns = `category, timestamp, run_id, client_id, subject, action,
	decision, reason, reviewer_id, request_id, device_label`

// AppendWithID materializes one event into audit_events under the outbox
// event ID. Redelivered messages land on ON CONFLICT and drop out.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, run_id, client_id, subject, action,
			decision, reason, reviewer_id, request_id, device_label
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		eventID, string(event.Category), event.Timestamp, nullableRunID(event.RunID),
		event.ClientID.String(), event.Subject, event.Action,
		event.Decision, event.Reason, event.ReviewerID, event.RequestID, event.DeviceLabel,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByRun returns a run's events oldest first, the order the run trail
// endpoint presents them in.
func (s *Store) ListByRun(ctx context.Context, runID id.RunID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events WHERE run_id = $1 ORDER BY timestamp ASC`,
		uuid.UUID(runID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the newest limit events across all runs.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events ORDER BY timestamp DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			clientID string
			runID    *uuid.UUID
		)
		if err := rows.Scan(&category, &event.Timestamp, &runID, &clientID,
			&event.Subject, &event.Action, &event.Decision, &event.Reason,
			&event.ReviewerID, &event.RequestID, &event.DeviceLabel); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.ClientID = id.ClientID(clientID)
		if runID != nil {
			event.RunID = id.RunID(*runID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// nullableRunID maps the nil run ID to SQL NULL.
func nullableRunID(runID id.RunID) *uuid.UUID {
	if runID.IsNil() {
		return nil
	}
	rid := uuid.UUID(runID)
	return &rid
}

// AppendCompliance materializes one compliance event. The run reference is
// required by the table, matching what the handler enforces.
func (s *Store) AppendCompliance(ctx context.Context, eventID uuid.UUID, record audit.ComplianceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_compliance (
			id, timestamp, run_id, client_id, subject, action,
			decision, reviewer_id, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		eventID, record.Timestamp, uuid.UUID(record.RunID),
		record.ClientID, record.Subject, record.Action,
		record.Decision, record.ReviewerID, record.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert compliance event: %w", err)
	}
	return nil
}

// AppendSecurity materializes one security event.
func (s *Store) AppendSecurity(ctx context.Context, eventID uuid.UUID, record audit.SecurityRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_security (
			id, timestamp, subject, action, reason,
			ip, request_id, reviewer_id, device_label, severity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		eventID, record.Timestamp, record.Subject, record.Action, record.Reason,
		record.IP, record.RequestID, record.ReviewerID, record.DeviceLabel, record.Severity,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// AppendOps materializes one ops event. audit_ops keys on (id, timestamp)
// so retention can drop whole time ranges, hence the composite conflict
// target.
func (s *Store) AppendOps(ctx context.Context, eventID uuid.UUID, record audit.OpsRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_ops (
			id, timestamp, run_id, subject, action, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id, timestamp) DO NOTHING`,
		eventID, record.Timestamp, nullableRunID(record.RunID),
		record.Subject, record.Action, record.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert ops event: %w", err)
	}
	return nil
}
