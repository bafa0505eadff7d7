// Package audit routes domain audit events to the category publishers.
//
// The run engine and manager emit plain audit.Events without caring which
// durability tier an action belongs to. The Pipeline splits them: compliance
// events go through the fail-closed synchronous publisher, security events
// through the buffered non-blocking one, and everything else through the
// sampled ops tracker.
package audit

import (
	"context"

	audit "provenance/pkg/platform/audit"
)

// CompliancePublisher persists regulatory events synchronously.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher enqueues security events without blocking.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// OpsTracker records operational events, best effort.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// Pipeline fans legacy audit events out to the right-sized publishers. It
// satisfies the run engine's AuditPublisher interface.
type Pipeline struct {
	compliance CompliancePublisher
	security   SecurityPublisher
	ops        OpsTracker
}

// NewPipeline creates the routing pipeline. Lifecycle stays with the caller:
// whoever constructed the publishers closes them.
func NewPipeline(compliance CompliancePublisher, security SecurityPublisher, ops OpsTracker) *Pipeline {
	return &Pipeline{
		compliance: compliance,
		security:   security,
		ops:        ops,
	}
}

// Emit routes one event by its category. Only the compliance path can fail;
// security and ops emission never return errors.
func (p *Pipeline) Emit(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	switch category {
	case audit.CategoryCompliance:
		return p.compliance.Emit(ctx, audit.ComplianceEvent{
			Timestamp:  event.Timestamp,
			RunID:      event.RunID,
			ClientID:   event.ClientID,
			Subject:    event.Subject,
			Action:     event.Action,
			Decision:   event.Decision,
			ReviewerID: event.ReviewerID,
			RequestID:  event.RequestID,
		})
	case audit.CategorySecurity:
		p.security.Emit(ctx, audit.SecurityEvent{
			Timestamp:   event.Timestamp,
			Subject:     event.Subject,
			Action:      event.Action,
			Reason:      event.Reason,
			IP:          event.IP,
			RequestID:   event.RequestID,
			ReviewerID:  event.ReviewerID,
			DeviceLabel: event.DeviceLabel,
			Severity:    audit.Severity(event.Severity),
		})
		return nil
	default:
		p.ops.Track(ctx, audit.OpsEvent{
			Timestamp: event.Timestamp,
			RunID:     event.RunID,
			Subject:   event.Subject,
			Action:    event.Action,
			RequestID: event.RequestID,
		})
		return nil
	}
}
