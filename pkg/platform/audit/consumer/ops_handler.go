package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"provenance/internal/platform/kafka/consumer"
	audit "provenance/pkg/platform/audit"
)

// OpsHandler materializes relayed ops events into the short-retention
// audit_ops table. Ops telemetry is droppable, so every outcome commits; a
// flaky table must not stall the group that compliance events share.
type OpsHandler struct {
	store  OpsStore
	logger *slog.Logger
}

// OpsStore persists ops rows keyed by outbox event ID.
type OpsStore interface {
	AppendOps(ctx context.Context, eventID uuid.UUID, event audit.OpsRecord) error
}

// NewOpsHandler builds the ops table materializer.
func NewOpsHandler(store OpsStore, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{store: store, logger: logger}
}

// opsPayload mirrors the field names the outbox writes.
type opsPayload struct {
	Timestamp string `json:"Timestamp"`
	RunID     string `json:"RunID"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	RequestID string `json:"RequestID"`
}

func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Debug("ops event has malformed key, dropping",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload opsPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Debug("ops payload does not decode, dropping",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	record := audit.OpsRecord{
		Timestamp: eventTime(payload.Timestamp),
		RunID:     runIDOf(payload.RunID),
		Subject:   payload.Subject,
		Action:    payload.Action,
		RequestID: payload.RequestID,
	}

	if err := h.store.AppendOps(ctx, eventID, record); err != nil {
		h.logger.Debug("ops append failed, dropping",
			"event_id", eventID,
			"action", record.Action,
			"error", err,
		)
	}
	return nil
}
