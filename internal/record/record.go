package record

import (
	"fmt"
	"time"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// VerificationRecord is the shared state for one run. All mutation goes
// through the methods below, which append the matching audit entry in the
// same call; direct field writes would silently break replayability.
//
// The record is not safe for concurrent use. The run manager guarantees a
// single goroutine owns a record at a time.
type VerificationRecord struct {
	RunID      id.RunID    `json:"run_id"`
	ClientID   id.ClientID `json:"client_id"`
	ClientName string      `json:"client_name"`
	ClientData ClientData  `json:"client_data"`

	VerificationResults  map[id.VerificationType]*VerificationResult   `json:"verification_results"`
	CorroborationResults map[id.CorroborationType]*CorroborationResult `json:"corroboration_results,omitempty"`
	Plan                 *Plan                                         `json:"verification_plan,omitempty"`
	PendingReviews       []ReviewItem                                  `json:"pending_reviews"`
	ReviewResponses      []ReviewResponse                              `json:"review_responses,omitempty"`
	HumanApprovals       map[id.VerificationType]*ApprovalDetail       `json:"human_approvals,omitempty"`
	Summary              *Summary                                      `json:"verification_summary,omitempty"`
	RiskAssessment       *RiskAssessment                               `json:"risk_assessment,omitempty"`

	// DataReadinessOverride lets an operator declare the gathered evidence
	// sufficient, allowing summarization despite open mandatory reviews.
	DataReadinessOverride bool `json:"data_readiness_override,omitempty"`

	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`

	AuditLog []AuditEntry `json:"audit_log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh record for a client and writes the creation audit
// entry.
func New(runID id.RunID, clientID id.ClientID, clientName string, data ClientData, now time.Time) *VerificationRecord {
	r := &VerificationRecord{
		RunID:               runID,
		ClientID:            clientID,
		ClientName:          clientName,
		ClientData:          data,
		VerificationResults: make(map[id.VerificationType]*VerificationResult),
		PendingReviews:      []ReviewItem{},
		AuditLog:            []AuditEntry{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	r.appendAudit(now, ActorSystem, AuditRunCreated, fmt.Sprintf("run created for client %s", clientID))
	return r
}

func (r *VerificationRecord) appendAudit(now time.Time, actor, action, result string) {
	r.AuditLog = append(r.AuditLog, AuditEntry{
		Timestamp: now,
		Actor:     actor,
		Action:    action,
		Result:    result,
	})
	r.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Plan mutations
// -----------------------------------------------------------------------------

// SetPlan installs the initial plan. The plan is created once; later changes
// go through UpsertRequirements.
func (r *VerificationRecord) SetPlan(p *Plan, now time.Time) error {
	if r.Plan != nil {
		return dErrors.New(dErrors.CodeConflict, "verification plan already created")
	}
	r.Plan = p
	r.appendAudit(now, ActorPlanner, AuditPlanCreated, fmt.Sprintf("%d requirement(s)", len(p.Requirements)))
	return nil
}

// UpsertRequirements amends the plan in place: existing entries for the same
// type are overwritten, never duplicated, so revision is idempotent.
func (r *VerificationRecord) UpsertRequirements(reqs map[id.VerificationType]*Requirement, now time.Time) error {
	if r.Plan == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot revise plan before it is created")
	}
	for t, req := range reqs {
		if existing, ok := r.Plan.Requirements[t]; ok {
			// Preserve progress already made on this step.
			req.Status = existing.Status
		}
		r.Plan.Requirements[t] = req
	}
	revisedAt := now
	r.Plan.RevisedAt = &revisedAt
	r.appendAudit(now, ActorPlanner, AuditPlanRevised, fmt.Sprintf("%d requirement(s) upserted", len(reqs)))
	return nil
}

// SetRequirementStatus moves one plan entry through its lifecycle.
func (r *VerificationRecord) SetRequirementStatus(t id.VerificationType, status id.RequirementStatus, now time.Time) error {
	req := r.Plan.Requirement(t)
	if req == nil {
		return dErrors.Newf(dErrors.CodeNotFound, "no plan requirement for %s", t)
	}
	req.Status = status
	r.UpdatedAt = now
	return nil
}

// -----------------------------------------------------------------------------
// Result mutations
// -----------------------------------------------------------------------------

// MarkCheckStarted records that an agent was dispatched for a type. The
// matching plan entry, if any, moves to in-progress until the result lands.
func (r *VerificationRecord) MarkCheckStarted(t id.VerificationType, now time.Time) {
	if req := r.Plan.Requirement(t); req != nil {
		req.Status = id.RequirementInProgress
	}
	r.appendAudit(now, ActorRouter, AuditCheckStarted, t.String())
}

// SetResult records a check outcome. The slot is replaced wholesale; the
// matching plan entry, if any, moves to completed or failed.
func (r *VerificationRecord) SetResult(t id.VerificationType, result *VerificationResult, now time.Time) {
	if r.VerificationResults == nil {
		r.VerificationResults = make(map[id.VerificationType]*VerificationResult)
	}
	result.Timestamp = now
	r.VerificationResults[t] = result

	if req := r.Plan.Requirement(t); req != nil {
		if result.Verified {
			req.Status = id.RequirementCompleted
		} else {
			req.Status = id.RequirementFailed
		}
	}

	outcome := "verified"
	if !result.Verified {
		outcome = fmt.Sprintf("unverified (%d issue(s))", len(result.Issues))
	}
	r.appendAudit(now, ActorAgent(t), AuditCheckCompleted, fmt.Sprintf("%s: %s", t, outcome))
}

// MarkStepSkipped marks a planned step that can never run (no agent wired
// for its type) so the router does not loop on it.
func (r *VerificationRecord) MarkStepSkipped(t id.VerificationType, reason string, now time.Time) error {
	if err := r.SetRequirementStatus(t, id.RequirementSkipped, now); err != nil {
		return err
	}
	r.appendAudit(now, ActorRouter, AuditCheckCompleted, fmt.Sprintf("%s skipped: %s", t, reason))
	return nil
}

// SetCorroboration records one cross-check outcome.
func (r *VerificationRecord) SetCorroboration(t id.CorroborationType, result *CorroborationResult, now time.Time) {
	if r.CorroborationResults == nil {
		r.CorroborationResults = make(map[id.CorroborationType]*CorroborationResult)
	}
	result.CheckedAt = now
	r.CorroborationResults[t] = result
	r.appendAudit(now, ActorSystem, AuditCorroborated, fmt.Sprintf("%s: consistent=%t confidence=%s", t, result.Consistent, result.Confidence))
}

// -----------------------------------------------------------------------------
// Review mutations
// -----------------------------------------------------------------------------

// EnqueueReview appends a pending review item. Issues must be non-empty:
// a clean result is never queued for a human.
func (r *VerificationRecord) EnqueueReview(item ReviewItem, now time.Time) error {
	if len(item.Issues) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "review item must carry at least one issue")
	}
	item.Status = id.ReviewPending
	item.RequestedAt = now
	r.PendingReviews = append(r.PendingReviews, item)
	r.appendAudit(now, ActorRouter, AuditReviewRequested, fmt.Sprintf("%s: %d issue(s)", item.Type, len(item.Issues)))
	return nil
}

// AddReviewResponse appends a reviewer decision to the merge inbox. The
// advisory step drains the inbox on the next router pass.
func (r *VerificationRecord) AddReviewResponse(resp ReviewResponse, now time.Time) {
	resp.ReceivedAt = now
	r.ReviewResponses = append(r.ReviewResponses, resp)
	decision := "rejected"
	if resp.Approved {
		decision = "approved"
	}
	r.appendAudit(now, ActorReviewer(resp.ReviewerID), AuditReviewReceived, fmt.Sprintf("%s: %s", resp.Type, decision))
}

// ResolveReview records the authoritative human decision for a type and
// marks every pending item for that type requested at or before the review
// date as handled: the newest as reviewed, older ones as stale. Replays for
// the same type overwrite the approval rather than duplicating it.
func (r *VerificationRecord) ResolveReview(t id.VerificationType, detail ApprovalDetail, now time.Time) {
	if r.HumanApprovals == nil {
		r.HumanApprovals = make(map[id.VerificationType]*ApprovalDetail)
	}
	detail.ReviewDate = now
	r.HumanApprovals[t] = &detail

	// Walk newest-first so the most recent pending item becomes the
	// reviewed one and earlier duplicates go stale.
	reviewed := false
	for i := len(r.PendingReviews) - 1; i >= 0; i-- {
		item := &r.PendingReviews[i]
		if item.Type != t || item.Status != id.ReviewPending || item.RequestedAt.After(detail.ReviewDate) {
			continue
		}
		if !reviewed {
			item.Status = id.ReviewReviewed
			reviewed = true
		} else {
			item.Status = id.ReviewStale
		}
	}

	decision := "rejected"
	if detail.Approved {
		decision = "approved"
	}
	r.appendAudit(now, ActorReviewer(detail.ReviewerID), AuditReviewResolved, fmt.Sprintf("%s: %s", t, decision))
}

// ClearReviewResponses empties the merge inbox after the advisory step has
// applied every response.
func (r *VerificationRecord) ClearReviewResponses(now time.Time) {
	r.ReviewResponses = nil
	r.UpdatedAt = now
}

// SetDataReadinessOverride records the operator's declaration that gathered
// evidence is sufficient despite open mandatory reviews.
func (r *VerificationRecord) SetDataReadinessOverride(actor string, now time.Time) {
	r.DataReadinessOverride = true
	r.appendAudit(now, actor, AuditOverrideSet, "summarization may proceed with open reviews")
}

// -----------------------------------------------------------------------------
// Terminal mutations
// -----------------------------------------------------------------------------

// SetSummary stores the summarizer projection.
func (r *VerificationRecord) SetSummary(s *Summary, now time.Time) {
	s.GeneratedAt = now
	r.Summary = s
	r.appendAudit(now, ActorSystem, AuditSummarized, fmt.Sprintf("%d risk indicator(s)", len(s.RiskIndicators)))
}

// SetRiskAssessment stores the final score. A second assessment for the
// same run is a programming error upstream.
func (r *VerificationRecord) SetRiskAssessment(a *RiskAssessment, now time.Time) error {
	if r.RiskAssessment != nil {
		return dErrors.New(dErrors.CodeConflict, "risk assessment already recorded")
	}
	a.AssessedAt = now
	r.RiskAssessment = a
	r.appendAudit(now, ActorSystem, AuditRiskAssessed, fmt.Sprintf("score=%d level=%s", a.Score, a.Level))
	return nil
}

// MarkAborted terminates the run. Only identity rejection (or a caller
// timeout treated as one) reaches this path.
func (r *VerificationRecord) MarkAborted(reason string, actor string, now time.Time) {
	r.Aborted = true
	r.AbortReason = reason
	r.appendAudit(now, actor, AuditRunAborted, reason)
}

// -----------------------------------------------------------------------------
// Pure queries
// -----------------------------------------------------------------------------

// Result returns the stored outcome for a type, or nil.
func (r *VerificationRecord) Result(t id.VerificationType) *VerificationResult {
	return r.VerificationResults[t]
}

// Approval returns the human decision for a type, or nil.
func (r *VerificationRecord) Approval(t id.VerificationType) *ApprovalDetail {
	if r.HumanApprovals == nil {
		return nil
	}
	return r.HumanApprovals[t]
}

// IdentityResolved reports whether the identity gate is passed: either the
// check verified the document or a human approved an override. No other
// check may progress while this is false.
func (r *VerificationRecord) IdentityResolved() bool {
	if res := r.Result(id.VerificationIdentity); res != nil && res.Verified {
		return true
	}
	if approval := r.Approval(id.VerificationIdentity); approval != nil && approval.Approved {
		return true
	}
	return false
}

// IdentityRejected reports whether a human terminally rejected identity.
func (r *VerificationRecord) IdentityRejected() bool {
	approval := r.Approval(id.VerificationIdentity)
	return approval != nil && !approval.Approved
}

// UnresolvedReviews returns pending review items that have no authoritative
// approval yet. Items predating a resolved approval for the same type are
// stale, not unresolved.
func (r *VerificationRecord) UnresolvedReviews() []ReviewItem {
	var open []ReviewItem
	for _, item := range r.PendingReviews {
		if item.Status != id.ReviewPending {
			continue
		}
		open = append(open, item)
	}
	return open
}

// UnresolvedMandatoryReviews filters UnresolvedReviews down to items whose
// verification type the plan marks required. These gate summarization
// unless the data-readiness override is set.
func (r *VerificationRecord) UnresolvedMandatoryReviews() []ReviewItem {
	var open []ReviewItem
	for _, item := range r.UnresolvedReviews() {
		if item.Type == id.VerificationIdentity || r.Plan.Requires(item.Type) {
			open = append(open, item)
		}
	}
	return open
}

// HasUnmergedResponses reports whether reviewer decisions are waiting in
// the inbox.
func (r *VerificationRecord) HasUnmergedResponses() bool {
	return len(r.ReviewResponses) > 0
}

// RejectionCount counts human rejections across all types.
func (r *VerificationRecord) RejectionCount() int {
	n := 0
	for _, approval := range r.HumanApprovals {
		if !approval.Approved {
			n++
		}
	}
	return n
}
