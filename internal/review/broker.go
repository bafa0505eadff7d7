// Package review owns the human review lifecycle on a verification record.
//
// Two protocols exist. Identity is a hard gate: a failed identity check
// suspends the run until a reviewer decides, and a rejection is terminal.
// Every other verification type is advisory: failed checks queue a review
// item and the run keeps moving; reviewer responses merge back in on the
// next router pass.
package review

import (
	"time"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"

	"provenance/internal/record"
)

// Broker applies review-protocol mutations to a record. It is stateless;
// persistence and locking belong to the caller.
type Broker struct{}

func NewBroker() *Broker {
	return &Broker{}
}

// QueueFromResult appends an advisory review item for a failed check. The
// item carries the result's extracted fields so the reviewer sees what the
// agent saw. Clean results are never queued; identity must go through
// RequestBlocking instead.
func (b *Broker) QueueFromResult(rec *record.VerificationRecord, t id.VerificationType, result *record.VerificationResult, now time.Time) error {
	if t == id.VerificationIdentity {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity reviews use the blocking path")
	}
	if !result.HasIssues() {
		return nil
	}
	return rec.EnqueueReview(record.ReviewItem{
		ID:       id.NewReviewItemID(),
		Type:     t,
		ClientID: rec.ClientID,
		Payload:  result.Fields,
		Issues:   result.Issues,
	}, now)
}

// RequestBlocking queues the identity review item that parks the run. At
// most one identity item is open at a time: re-entering the suspended state
// after a restart must not duplicate the request.
func (b *Broker) RequestBlocking(rec *record.VerificationRecord, now time.Time) error {
	for _, item := range rec.UnresolvedReviews() {
		if item.Type == id.VerificationIdentity {
			return nil
		}
	}
	item := record.ReviewItem{
		ID:       id.NewReviewItemID(),
		Type:     id.VerificationIdentity,
		ClientID: rec.ClientID,
		Issues:   []string{"identity verification incomplete"},
	}
	if res := rec.Result(id.VerificationIdentity); res != nil {
		item.Payload = res.Fields
		if len(res.Issues) > 0 {
			item.Issues = res.Issues
		}
	}
	return rec.EnqueueReview(item, now)
}

// Decide records the authoritative human decision for a type. The issues
// visible on the check result at decision time are captured alongside, so
// the approval stays meaningful if the check later reruns. Replays for the
// same type overwrite the previous decision.
func (b *Broker) Decide(rec *record.VerificationRecord, t id.VerificationType, approved bool, comments string, reviewerID id.ReviewerID, now time.Time) {
	detail := record.ApprovalDetail{
		Approved:   approved,
		Comments:   comments,
		ReviewerID: reviewerID,
	}
	if res := rec.Result(t); res != nil {
		detail.IssuesAtReview = append([]string(nil), res.Issues...)
	}
	rec.ResolveReview(t, detail, now)
}

// ApplyResponses drains the merge inbox in arrival order, so the latest
// response for a type wins, then clears the inbox. Returns the number of
// responses applied.
func (b *Broker) ApplyResponses(rec *record.VerificationRecord, now time.Time) int {
	n := len(rec.ReviewResponses)
	if n == 0 {
		return 0
	}
	for _, resp := range rec.ReviewResponses {
		b.Decide(rec, resp.Type, resp.Approved, resp.Comments, resp.ReviewerID, now)
	}
	rec.ClearReviewResponses(now)
	return n
}
