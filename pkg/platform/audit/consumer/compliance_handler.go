package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"provenance/internal/platform/kafka/consumer"
	audit "provenance/pkg/platform/audit"
)

// ComplianceHandler materializes relayed compliance events into the
// audit_compliance table, the retention record regulators query against.
// A storage failure is returned so the group redelivers; only messages
// that can never be stored are committed and skipped.
type ComplianceHandler struct {
	store  ComplianceStore
	logger *slog.Logger
}

// ComplianceStore persists compliance rows keyed by outbox event ID.
type ComplianceStore interface {
	AppendCompliance(ctx context.Context, eventID uuid.UUID, event audit.ComplianceRecord) error
}

// NewComplianceHandler builds the compliance table materializer.
func NewComplianceHandler(store ComplianceStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{store: store, logger: logger}
}

// compliancePayload mirrors the field names the outbox writes.
type compliancePayload struct {
	Timestamp  string `json:"Timestamp"`
	RunID      string `json:"RunID"`
	ClientID   string `json:"ClientID"`
	Subject    string `json:"Subject"`
	Action     string `json:"Action"`
	Decision   string `json:"Decision"`
	ReviewerID string `json:"ReviewerID"`
	RequestID  string `json:"RequestID"`
}

func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("compliance event has malformed key, skipping",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("compliance payload does not decode, skipping",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	// A compliance row with no run reference is unusable, and retrying will
	// not grow one, so it is logged loudly and committed.
	if payload.RunID == "" {
		h.logger.Error("compliance event missing run reference, skipping",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	record := audit.ComplianceRecord{
		Timestamp:  eventTime(payload.Timestamp),
		RunID:      runIDOf(payload.RunID),
		ClientID:   payload.ClientID,
		Subject:    payload.Subject,
		Action:     payload.Action,
		Decision:   payload.Decision,
		ReviewerID: payload.ReviewerID,
		RequestID:  payload.RequestID,
	}

	if err := h.store.AppendCompliance(ctx, eventID, record); err != nil {
		h.logger.Error("compliance append failed, leaving uncommitted",
			"event_id", eventID,
			"action", record.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("compliance event stored",
		"event_id", eventID,
		"action", record.Action,
		"run_id", record.RunID,
	)
	return nil
}
