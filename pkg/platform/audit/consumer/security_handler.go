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

// SecurityHandler materializes relayed security events into the
// audit_security table the SIEM export reads. Storage failures are returned
// for redelivery; messages that cannot decode are committed and skipped.
type SecurityHandler struct {
	store  SecurityStore
	logger *slog.Logger
}

// SecurityStore persists security rows keyed by outbox event ID.
type SecurityStore interface {
	AppendSecurity(ctx context.Context, eventID uuid.UUID, event audit.SecurityRecord) error
}

// NewSecurityHandler builds the security table materializer.
func NewSecurityHandler(store SecurityStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{store: store, logger: logger}
}

// securityPayload mirrors the field names the outbox writes.
type securityPayload struct {
	Timestamp   string `json:"Timestamp"`
	Subject     string `json:"Subject"`
	Action      string `json:"Action"`
	Reason      string `json:"Reason"`
	IP          string `json:"IP"`
	RequestID   string `json:"RequestID"`
	ReviewerID  string `json:"ReviewerID"`
	DeviceLabel string `json:"DeviceLabel"`
	Severity    string `json:"Severity"`
}

func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Warn("security event has malformed key, skipping",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload securityPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("security payload does not decode, skipping",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	record := audit.SecurityRecord{
		Timestamp:   eventTime(payload.Timestamp),
		Subject:     payload.Subject,
		Action:      payload.Action,
		Reason:      payload.Reason,
		IP:          payload.IP,
		RequestID:   payload.RequestID,
		ReviewerID:  payload.ReviewerID,
		DeviceLabel: payload.DeviceLabel,
		Severity:    payload.Severity,
	}
	if record.Severity == "" {
		record.Severity = string(audit.SeverityInfo)
	}

	if err := h.store.AppendSecurity(ctx, eventID, record); err != nil {
		h.logger.Error("security append failed, leaving uncommitted",
			"event_id", eventID,
			"action", record.Action,
			"error", err,
		)
		return fmt.Errorf("store security event: %w", err)
	}

	h.logger.Debug("security event stored",
		"event_id", eventID,
		"action", record.Action,
		"severity", record.Severity,
	)
	return nil
}
