// Package planner decides which verification types a run requires and keeps
// that decision current as findings arrive.
//
// This is pure domain logic - no I/O, no side effects. The run engine owns
// applying plan updates to the record.
package planner

import (
	"fmt"
	"sort"
	stdstrings "strings"
	"time"

	id "provenance/pkg/domain"
	pstrings "provenance/pkg/platform/strings"

	"provenance/internal/record"
)

// professionalNetworkSources are mention sources treated as direct
// employment evidence regardless of extracted analysis.
var professionalNetworkSources = map[string]bool{
	"linkedin": true,
	"xing":     true,
}

// financialKeywords flag a mention as financial-news-style evidence when any
// of them appears in the mention details (case-insensitive).
var financialKeywords = []string{
	"investor",
	"investment",
	"shareholder",
	"dividend",
	"stocks",
	"bonds",
	"portfolio",
	"financial report",
}

// Plan priorities. Identity is the implicit priority-0 prerequisite and is
// never stored as a requirement entry.
const (
	priorityWebReferences = 2
	priorityEvidence      = 3
	prioritySupplementary = 4
)

// Planner builds and revises verification plans. It is stateless; every
// method is a pure function of its inputs.
type Planner struct{}

// New creates a Planner.
func New() *Planner {
	return &Planner{}
}

// CreateInitialPlan returns the plan for a fresh run: web references is the
// only concrete requirement. Payslip and financial reports are deliberately
// absent until the web check has produced findings to react to.
func (p *Planner) CreateInitialPlan(now time.Time) *record.Plan {
	return &record.Plan{
		Requirements: map[id.VerificationType]*record.Requirement{
			id.VerificationWebReferences: {
				Required: true,
				Reason:   "initial web presence check",
				Status:   id.RequirementPending,
				Priority: priorityWebReferences,
			},
		},
		CreatedAt: now,
	}
}

// WebFindings is the planner's view of a completed web references check.
type WebFindings struct {
	Mentions []record.WebMention
}

// ReviseAfterWebCheck inspects web mentions for employment and financial
// signals and returns the requirement entries to upsert:
//
//   - employment evidence found -> payslip becomes required
//   - financial signals found, or no employment evidence at all ->
//     financial reports is added; it is mandatory only in the no-employment
//     case, where it is the fallback evidence source
//
// The returned map upserts by key, so re-running with unchanged web data
// overwrites the same entries instead of duplicating them.
func (p *Planner) ReviseAfterWebCheck(findings WebFindings) map[id.VerificationType]*record.Requirement {
	employers := employersIn(findings.Mentions)
	employmentMentioned := len(employers) > 0 || hasProfessionalNetworkSource(findings.Mentions)
	financialMentioned := hasFinancialSignals(findings.Mentions)

	updates := make(map[id.VerificationType]*record.Requirement)

	if employmentMentioned {
		reason := "Employment information found in web references"
		if len(employers) > 0 {
			reason = fmt.Sprintf("%s: %s", reason, stdstrings.Join(employers, ", "))
		}
		updates[id.VerificationPayslip] = &record.Requirement{
			Required: true,
			Reason:   reason,
			Status:   id.RequirementPending,
			Priority: priorityEvidence,
		}
	}

	if financialMentioned || !employmentMentioned {
		req := &record.Requirement{
			Status: id.RequirementPending,
		}
		if !employmentMentioned {
			req.Required = true
			req.Reason = "No employment information found, alternative verification needed"
			req.Priority = priorityEvidence
		} else {
			req.Required = false
			req.Reason = "Financial information found in web references"
			req.Priority = prioritySupplementary
		}
		updates[id.VerificationFinancialReports] = req
	}

	return updates
}

// NextRequiredStep returns the unfinished plan entry with the lowest priority
// number. Equal priorities break ties by the canonical verification type
// order so the step sequence is deterministic. A step left in-progress by an
// interrupted run counts as unfinished and is dispatched again. ok is false
// when every entry is terminal and the run should move to summarization.
func (p *Planner) NextRequiredStep(plan *record.Plan) (id.VerificationType, bool) {
	if plan == nil || len(plan.Requirements) == 0 {
		return "", false
	}

	type candidate struct {
		t   id.VerificationType
		req *record.Requirement
	}
	var pending []candidate
	for t, req := range plan.Requirements {
		if !req.Status.IsTerminal() {
			pending = append(pending, candidate{t: t, req: req})
		}
	}
	if len(pending) == 0 {
		return "", false
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].req.Priority != pending[j].req.Priority {
			return pending[i].req.Priority < pending[j].req.Priority
		}
		return pending[i].t.CanonicalOrder() < pending[j].t.CanonicalOrder()
	})
	return pending[0].t, true
}

func employersIn(mentions []record.WebMention) []string {
	var employers []string
	for _, m := range mentions {
		if m.Analysis != nil && m.Analysis.Company != "" {
			employers = append(employers, m.Analysis.Company)
		}
	}
	return pstrings.DedupeAndTrim(employers)
}

func hasProfessionalNetworkSource(mentions []record.WebMention) bool {
	for _, m := range mentions {
		if professionalNetworkSources[stdstrings.ToLower(m.Source)] {
			return true
		}
	}
	return false
}

func hasFinancialSignals(mentions []record.WebMention) bool {
	for _, m := range mentions {
		details := stdstrings.ToLower(m.Details)
		for _, keyword := range financialKeywords {
			if stdstrings.Contains(details, keyword) {
				return true
			}
		}
	}
	return false
}
