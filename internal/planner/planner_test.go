package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "provenance/pkg/domain"

	"provenance/internal/record"
)

// Justification for unit tests: the planner is pure domain logic whose
// decisions gate which evidence a compliance run demands. Wrong requirements
// here mean wrong risk scores downstream.

func TestCreateInitialPlan(t *testing.T) {
	p := New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	plan := p.CreateInitialPlan(now)

	require.Len(t, plan.Requirements, 1, "initial plan must contain only the web check")

	web := plan.Requirements[id.VerificationWebReferences]
	require.NotNil(t, web)
	assert.True(t, web.Required)
	assert.Equal(t, 2, web.Priority)
	assert.Equal(t, "initial web presence check", web.Reason)
	assert.Equal(t, id.RequirementPending, web.Status)

	// Payslip and financial reports must be absent, not merely optional.
	assert.Nil(t, plan.Requirements[id.VerificationPayslip])
	assert.Nil(t, plan.Requirements[id.VerificationFinancialReports])

	// Identity is the implicit prerequisite and never a plan entry.
	assert.Nil(t, plan.Requirements[id.VerificationIdentity])
}

func TestReviseAfterWebCheck(t *testing.T) {
	p := New()

	t.Run("employment found requires payslip and omits financial", func(t *testing.T) {
		// Scenario: a mention carries an extracted employer and no
		// financial keywords appear anywhere.
		updates := p.ReviseAfterWebCheck(WebFindings{
			Mentions: []record.WebMention{
				{
					Source:   "news",
					Details:  "Promoted to head of engineering",
					Analysis: &record.MentionAnalysis{Company: "Acme Corp", Position: "Engineer"},
				},
			},
		})

		payslip := updates[id.VerificationPayslip]
		require.NotNil(t, payslip)
		assert.True(t, payslip.Required)
		assert.Equal(t, 3, payslip.Priority)
		assert.Equal(t, "Employment information found in web references: Acme Corp", payslip.Reason)

		assert.NotContains(t, updates, id.VerificationFinancialReports,
			"financial reports must be absent when employment found and no financial signals")
	})

	t.Run("no mentions falls back to mandatory financial reports", func(t *testing.T) {
		updates := p.ReviseAfterWebCheck(WebFindings{})

		assert.NotContains(t, updates, id.VerificationPayslip)

		fin := updates[id.VerificationFinancialReports]
		require.NotNil(t, fin)
		assert.True(t, fin.Required)
		assert.Equal(t, 3, fin.Priority)
		assert.Equal(t, "No employment information found, alternative verification needed", fin.Reason)
	})

	t.Run("employment plus financial signals adds supplementary financial", func(t *testing.T) {
		updates := p.ReviseAfterWebCheck(WebFindings{
			Mentions: []record.WebMention{
				{Source: "linkedin", Details: "Senior partner profile"},
				{Source: "news", Details: "Named as a major shareholder and investor"},
			},
		})

		payslip := updates[id.VerificationPayslip]
		require.NotNil(t, payslip)
		assert.True(t, payslip.Required)

		fin := updates[id.VerificationFinancialReports]
		require.NotNil(t, fin)
		assert.False(t, fin.Required, "financial reports is supplementary when employment evidence exists")
		assert.Equal(t, 4, fin.Priority)
		assert.Equal(t, "Financial information found in web references", fin.Reason)
	})

	t.Run("professional network source counts as employment without employer field", func(t *testing.T) {
		updates := p.ReviseAfterWebCheck(WebFindings{
			Mentions: []record.WebMention{{Source: "LinkedIn", Details: "profile"}},
		})

		require.NotNil(t, updates[id.VerificationPayslip])
		assert.Equal(t, "Employment information found in web references", updates[id.VerificationPayslip].Reason)
	})

	t.Run("keyword matching is case-insensitive", func(t *testing.T) {
		updates := p.ReviseAfterWebCheck(WebFindings{
			Mentions: []record.WebMention{
				{Source: "linkedin"},
				{Source: "news", Details: "Built a large PORTFOLIO of holdings"},
			},
		})

		fin := updates[id.VerificationFinancialReports]
		require.NotNil(t, fin)
		assert.False(t, fin.Required)
	})

	t.Run("employer names are deduplicated in the reason", func(t *testing.T) {
		updates := p.ReviseAfterWebCheck(WebFindings{
			Mentions: []record.WebMention{
				{Source: "news", Analysis: &record.MentionAnalysis{Company: "Acme Corp"}},
				{Source: "blog", Analysis: &record.MentionAnalysis{Company: "Acme Corp"}},
				{Source: "news", Analysis: &record.MentionAnalysis{Company: "Globex"}},
			},
		})

		require.NotNil(t, updates[id.VerificationPayslip])
		assert.Equal(t, "Employment information found in web references: Acme Corp, Globex",
			updates[id.VerificationPayslip].Reason)
	})
}

// TestReviseAfterWebCheck_Monotonic verifies revision is idempotent: applying
// the same web data twice upserts the same keys with the same values.
func TestReviseAfterWebCheck_Monotonic(t *testing.T) {
	p := New()
	findings := WebFindings{
		Mentions: []record.WebMention{
			{Source: "linkedin", Details: "profile", Analysis: &record.MentionAnalysis{Company: "Acme Corp"}},
		},
	}

	first := p.ReviseAfterWebCheck(findings)
	second := p.ReviseAfterWebCheck(findings)

	require.Equal(t, len(first), len(second))
	for key, req := range first {
		assert.Equal(t, req, second[key], "revision for %s changed across identical invocations", key)
	}
}

func TestNextRequiredStep(t *testing.T) {
	p := New()

	t.Run("empty plan yields summarization", func(t *testing.T) {
		_, ok := p.NextRequiredStep(nil)
		assert.False(t, ok)

		_, ok = p.NextRequiredStep(&record.Plan{Requirements: map[id.VerificationType]*record.Requirement{}})
		assert.False(t, ok)
	})

	t.Run("lowest priority number wins", func(t *testing.T) {
		plan := &record.Plan{Requirements: map[id.VerificationType]*record.Requirement{
			id.VerificationWebReferences:    {Status: id.RequirementPending, Priority: 2},
			id.VerificationFinancialReports: {Status: id.RequirementPending, Priority: 4},
		}}

		next, ok := p.NextRequiredStep(plan)
		require.True(t, ok)
		assert.Equal(t, id.VerificationWebReferences, next)
	})

	t.Run("terminal statuses are not candidates", func(t *testing.T) {
		plan := &record.Plan{Requirements: map[id.VerificationType]*record.Requirement{
			id.VerificationWebReferences:    {Status: id.RequirementCompleted, Priority: 2},
			id.VerificationPayslip:          {Status: id.RequirementFailed, Priority: 3},
			id.VerificationFinancialReports: {Status: id.RequirementPending, Priority: 4},
		}}

		next, ok := p.NextRequiredStep(plan)
		require.True(t, ok)
		assert.Equal(t, id.VerificationFinancialReports, next)
	})

	t.Run("a step left in progress is dispatched again", func(t *testing.T) {
		plan := &record.Plan{Requirements: map[id.VerificationType]*record.Requirement{
			id.VerificationWebReferences: {Status: id.RequirementInProgress, Priority: 2},
			id.VerificationPayslip:       {Status: id.RequirementPending, Priority: 3},
		}}

		next, ok := p.NextRequiredStep(plan)
		require.True(t, ok)
		assert.Equal(t, id.VerificationWebReferences, next,
			"an interrupted step must not strand the run")
	})

	t.Run("all terminal yields summarization", func(t *testing.T) {
		plan := &record.Plan{Requirements: map[id.VerificationType]*record.Requirement{
			id.VerificationWebReferences: {Status: id.RequirementCompleted, Priority: 2},
			id.VerificationPayslip:       {Status: id.RequirementSkipped, Priority: 3},
		}}

		_, ok := p.NextRequiredStep(plan)
		assert.False(t, ok)
	})

	t.Run("equal priorities break ties canonically", func(t *testing.T) {
		plan := &record.Plan{Requirements: map[id.VerificationType]*record.Requirement{
			id.VerificationFinancialReports: {Status: id.RequirementPending, Priority: 3},
			id.VerificationPayslip:          {Status: id.RequirementPending, Priority: 3},
		}}

		next, ok := p.NextRequiredStep(plan)
		require.True(t, ok)
		assert.Equal(t, id.VerificationPayslip, next, "payslip precedes financial reports at equal priority")
	})
}
