// Package run drives a verification run from intake to report. The router
// decides the next action from the record alone; the engine executes actions
// and persists after every step; the manager owns run lifecycles, locking,
// and the suspend/resume protocol around the blocking identity review.
package run

import (
	id "provenance/pkg/domain"
)

// ActionKind enumerates the router's verdicts.
type ActionKind string

const (
	// ActionMergeReviews drains the review response inbox before anything
	// else is decided.
	ActionMergeReviews ActionKind = "merge_reviews"

	// ActionRunCheck executes the verification agent for NextAction.CheckType.
	ActionRunCheck ActionKind = "run_check"

	// ActionBlockingReview parks the run until a reviewer decides identity.
	// The single hard stop in the workflow.
	ActionBlockingReview ActionKind = "blocking_review"

	// ActionAwaitReviews parks the run until responses arrive for the
	// mandatory reviews gating summarization.
	ActionAwaitReviews ActionKind = "await_reviews"

	// ActionSummarize builds the verification summary.
	ActionSummarize ActionKind = "summarize"

	// ActionAssessRisk scores the run. Follows summarization unconditionally.
	ActionAssessRisk ActionKind = "assess_risk"

	// ActionComplete ends the run with a report.
	ActionComplete ActionKind = "complete"

	// ActionAbort ends the run without a report. Only identity rejection
	// reaches this.
	ActionAbort ActionKind = "abort"
)

// NextAction is the router's verdict for one step. CheckType is meaningful
// only when Kind is ActionRunCheck.
type NextAction struct {
	Kind      ActionKind
	CheckType id.VerificationType
}

// Terminal reports whether the action ends the engine loop for good.
func (a NextAction) Terminal() bool {
	return a.Kind == ActionComplete || a.Kind == ActionAbort
}

// Parks reports whether the action leaves the run waiting on human input.
func (a NextAction) Parks() bool {
	return a.Kind == ActionBlockingReview || a.Kind == ActionAwaitReviews
}

// Status is the engine's verdict after driving a run as far as it can go
// without human input.
type Status string

const (
	// StatusCompleted means the report is ready.
	StatusCompleted Status = "completed"

	// StatusSuspended means the run is parked at the blocking identity
	// review and resumes via an identity decision.
	StatusSuspended Status = "suspended"

	// StatusAwaitingReviews means summarization is gated on open mandatory
	// reviews; the run resumes when responses arrive.
	StatusAwaitingReviews Status = "awaiting_reviews"

	// StatusAborted means the run terminated without a report.
	StatusAborted Status = "aborted"
)
