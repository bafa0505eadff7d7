package run

import (
	id "provenance/pkg/domain"

	"provenance/internal/planner"
	"provenance/internal/record"
)

// Router decides the next action for a run. Route is a pure function of the
// record: no hidden counters, no clock, no I/O. Re-routing an unchanged
// record always yields the same action, which is what makes suspend/resume
// and crash recovery safe.
type Router struct {
	planner *planner.Planner
}

func NewRouter(p *planner.Planner) *Router {
	return &Router{planner: p}
}

// Route returns the next action for the record.
//
// Precedence, highest first: terminal states, unmerged reviewer responses,
// the identity gate, the summary-to-risk edge, pending plan steps, the
// mandatory-review gate before summarization.
func (r *Router) Route(rec *record.VerificationRecord) NextAction {
	if rec.RiskAssessment != nil {
		return NextAction{Kind: ActionComplete}
	}
	if rec.Aborted || rec.IdentityRejected() {
		return NextAction{Kind: ActionAbort}
	}

	// Reviewer decisions merge before anything else is decided, so routing
	// always works from the latest human input.
	if rec.HasUnmergedResponses() {
		return NextAction{Kind: ActionMergeReviews}
	}

	// Identity is the unconditional first step. Until it verifies or a
	// human overrides, nothing else executes.
	if rec.Result(id.VerificationIdentity) == nil {
		return NextAction{Kind: ActionRunCheck, CheckType: id.VerificationIdentity}
	}
	if !rec.IdentityResolved() {
		return NextAction{Kind: ActionBlockingReview}
	}

	// Summarization flows into risk assessment unconditionally.
	if rec.Summary != nil {
		return NextAction{Kind: ActionAssessRisk}
	}

	if t, ok := r.planner.NextRequiredStep(rec.Plan); ok {
		return NextAction{Kind: ActionRunCheck, CheckType: t}
	}

	if !rec.DataReadinessOverride && len(rec.UnresolvedMandatoryReviews()) > 0 {
		return NextAction{Kind: ActionAwaitReviews}
	}

	return NextAction{Kind: ActionSummarize}
}
