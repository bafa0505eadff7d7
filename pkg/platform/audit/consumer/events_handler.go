package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"provenance/internal/platform/kafka/consumer"
	id "provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
)

// EventsHandler materializes every relayed event into the flat audit_events
// table, whatever its category. It runs in its own consumer group so the
// per-run trail query sees all three categories in one place.
type EventsHandler struct {
	store  EventsStore
	logger *slog.Logger
}

// EventsStore persists full events keyed by outbox event ID.
type EventsStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// NewEventsHandler builds the unified event materializer.
func NewEventsHandler(store EventsStore, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{store: store, logger: logger}
}

// eventPayload mirrors the full field set the outbox writes.
type eventPayload struct {
	Category    string `json:"Category"`
	Timestamp   string `json:"Timestamp"`
	RunID       string `json:"RunID"`
	ClientID    string `json:"ClientID"`
	Subject     string `json:"Subject"`
	Action      string `json:"Action"`
	Decision    string `json:"Decision"`
	Reason      string `json:"Reason"`
	ReviewerID  string `json:"ReviewerID"`
	RequestID   string `json:"RequestID"`
	IP          string `json:"IP"`
	DeviceLabel string `json:"DeviceLabel"`
	Severity    string `json:"Severity"`
}

func (h *EventsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Warn("audit event has malformed key, skipping",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload eventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("audit payload does not decode, skipping",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	event := audit.Event{
		Category:    audit.EventCategory(payload.Category),
		Timestamp:   eventTime(payload.Timestamp),
		RunID:       runIDOf(payload.RunID),
		ClientID:    id.ClientID(payload.ClientID),
		Subject:     payload.Subject,
		Action:      payload.Action,
		Decision:    payload.Decision,
		Reason:      payload.Reason,
		ReviewerID:  payload.ReviewerID,
		RequestID:   payload.RequestID,
		IP:          payload.IP,
		DeviceLabel: payload.DeviceLabel,
		Severity:    payload.Severity,
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(payload.Action).Category()
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("audit event append failed, leaving uncommitted",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("materialize audit event: %w", err)
	}
	return nil
}
