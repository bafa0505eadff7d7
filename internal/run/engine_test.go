package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/audit"

	"provenance/internal/agents"
	"provenance/internal/record"
	"provenance/internal/record/store"
	"provenance/internal/run/mocks"
)

// Justification for unit tests: Drive is where routing, agents, the review
// broker, the planner, and persistence meet. These tests pin the step
// contract (save after every mutation, audit only after the save), the
// conversion of agent failures into reviewable results, and the parking
// behavior the HTTP layer depends on.

var engineT0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// stepClock hands out strictly increasing timestamps so every step lands on
// a distinct instant.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// stubAgent runs a canned function for one verification type.
type stubAgent struct {
	typ id.VerificationType
	run func(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error)
}

func (a *stubAgent) Type() id.VerificationType { return a.typ }

func (a *stubAgent) Run(ctx context.Context, rec *record.VerificationRecord) (*record.VerificationResult, error) {
	return a.run(ctx, rec)
}

func agentReturning(typ id.VerificationType, result *record.VerificationResult, err error) *stubAgent {
	return &stubAgent{typ: typ, run: func(context.Context, *record.VerificationRecord) (*record.VerificationResult, error) {
		return result, err
	}}
}

func identityVerifiedAgent(t *testing.T) *stubAgent {
	t.Helper()
	fields, err := record.IdentityFields{
		FullName:     "Jane Smith",
		DocumentType: "passport",
		ExpiryDate:   "2031-04-15",
	}.AsMap()
	require.NoError(t, err)
	return agentReturning(id.VerificationIdentity, &record.VerificationResult{Verified: true, Fields: fields}, nil)
}

func identityFailedAgent(t *testing.T) *stubAgent {
	t.Helper()
	fields, err := record.IdentityFields{
		FullName:   "Jane Smith",
		ExpiryDate: "2024-01-01",
	}.AsMap()
	require.NoError(t, err)
	return agentReturning(id.VerificationIdentity, &record.VerificationResult{
		Verified: false,
		Issues:   []string{"ID document has expired"},
		Fields:   fields,
	}, nil)
}

func webAgentWithEmployer(t *testing.T, employer string) *stubAgent {
	t.Helper()
	fields, err := record.WebReferencesFields{
		Mentions: []record.WebMention{{
			Source:  "LinkedIn",
			Title:   "Jane Smith",
			Details: "Senior Engineer at " + employer,
			Analysis: &record.MentionAnalysis{
				Company:  employer,
				Position: "Senior Engineer",
			},
		}},
	}.AsMap()
	require.NoError(t, err)
	return agentReturning(id.VerificationWebReferences, &record.VerificationResult{Verified: true, Fields: fields}, nil)
}

func webAgentNoMentions(t *testing.T) *stubAgent {
	t.Helper()
	fields, err := record.WebReferencesFields{Mentions: []record.WebMention{}}.AsMap()
	require.NoError(t, err)
	return agentReturning(id.VerificationWebReferences, &record.VerificationResult{
		Verified: false,
		Issues:   []string{agents.IssueNoWebReferences},
		Fields:   fields,
	}, nil)
}

func payslipVerifiedAgent(t *testing.T, employer string) *stubAgent {
	t.Helper()
	fields, err := record.PayslipFields{
		EmployeeName:  "Jane Smith",
		Employer:      employer,
		GrossPay:      "8000.00",
		PayFrequency:  "monthly",
		MonthlyIncome: "8000.00",
	}.AsMap()
	require.NoError(t, err)
	return agentReturning(id.VerificationPayslip, &record.VerificationResult{Verified: true, Fields: fields}, nil)
}

func financialVerifiedAgent(t *testing.T) *stubAgent {
	t.Helper()
	fields, err := record.FinancialFields{
		EstimatedAnnualIncome: "90000 - 110000",
		SourceOfWealth:        "employment",
	}.AsMap()
	require.NoError(t, err)
	return agentReturning(id.VerificationFinancialReports, &record.VerificationResult{Verified: true, Fields: fields}, nil)
}

func engineClientData() record.ClientData {
	return record.ClientData{
		IDDocument: &record.IDDocument{
			DocumentType: "passport",
			FullName:     "Jane Smith",
			DateOfBirth:  "1985-03-12",
			ExpiryDate:   "2031-04-15",
		},
		Payslip: &record.PayslipDocument{
			EmployeeName: "Jane Smith",
			Employer:     "Acme Corp",
			GrossPay:     "8000.00",
			PayFrequency: "monthly",
		},
		FinancialProfile: &record.FinancialProfile{
			DeclaredAnnualIncome: "90,000 - 110,000",
			SourceOfWealth:       "employment",
		},
	}
}

func newTestEngine(t *testing.T, st Store, agentList []agents.Agent, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock((&stepClock{t: engineT0}).Now),
	}
	e, err := NewEngine(st, agentList, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

func startedRun(t *testing.T, e *Engine, st Store) *record.VerificationRecord {
	t.Helper()
	clientID, err := id.ParseClientID("CLT-4001")
	require.NoError(t, err)
	rec, err := e.NewRun(clientID, "Jane Smith", engineClientData(), engineT0)
	require.NoError(t, err)
	require.NoError(t, st.Create(context.Background(), rec))
	return rec
}

// collectingPublisher wires the generated audit mock to an in-order event
// log.
func collectingPublisher(ctrl *gomock.Controller, events *[]audit.Event) *mocks.MockAuditPublisher {
	publisher := mocks.NewMockAuditPublisher(ctrl)
	publisher.EXPECT().
		Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev audit.Event) error {
			*events = append(*events, ev)
			return nil
		}).
		AnyTimes()
	return publisher
}

func auditActions(events []audit.Event) []string {
	actions := make([]string, 0, len(events))
	for _, ev := range events {
		actions = append(actions, ev.Action)
	}
	return actions
}

// ============================================================
// Drive: straight-through completion
// ============================================================

func TestEngineDriveCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := store.NewMemoryStore()
	var events []audit.Event
	e := newTestEngine(t, st, []agents.Agent{
		identityVerifiedAgent(t),
		webAgentWithEmployer(t, "Acme Corp"),
		payslipVerifiedAgent(t, "Acme Corp"),
		financialVerifiedAgent(t),
	}, WithAuditPublisher(collectingPublisher(ctrl, &events)))

	rec := startedRun(t, e, st)

	status, err := e.Drive(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	require.NotNil(t, rec.Summary)
	require.NotNil(t, rec.RiskAssessment)
	assert.NotNil(t, rec.Result(id.VerificationIdentity))
	assert.NotNil(t, rec.Result(id.VerificationWebReferences))
	assert.NotNil(t, rec.Result(id.VerificationPayslip))

	t.Run("employment mention promotes the payslip requirement", func(t *testing.T) {
		req := rec.Plan.Requirements[id.VerificationPayslip]
		require.NotNil(t, req)
		assert.True(t, req.Required)
		assert.Equal(t, id.RequirementCompleted, req.Status)
	})

	t.Run("both corroborations ran and agree", func(t *testing.T) {
		employment := rec.CorroborationResults[id.CorroborationEmployment]
		require.NotNil(t, employment)
		assert.True(t, employment.Consistent)

		// 8000 a month annualizes to 96000, inside the declared range.
		funds := rec.CorroborationResults[id.CorroborationFunds]
		require.NotNil(t, funds)
		assert.True(t, funds.Consistent)
	})

	t.Run("audit trail is emitted in step order", func(t *testing.T) {
		assert.Equal(t, []string{
			"check_completed",         // identity
			"plan_revised",            // web findings promote payslip
			"check_completed",         // web references
			"corroboration_completed", // employment
			"corroboration_completed", // funds
			"check_completed",         // payslip
			"summary_generated",
			"risk_assessed",
			"run_completed",
		}, auditActions(events))
		for _, ev := range events {
			assert.Equal(t, rec.RunID, ev.RunID)
			assert.Equal(t, rec.ClientID, ev.ClientID)
		}
	})

	t.Run("record trail marks each check started before its result", func(t *testing.T) {
		var started []string
		for _, entry := range rec.AuditLog {
			if entry.Action == record.AuditCheckStarted {
				started = append(started, entry.Result)
			}
		}
		assert.Equal(t, []string{"identity", "web_references", "payslip"}, started)
	})

	t.Run("final state is what the store holds", func(t *testing.T) {
		persisted, err := st.Get(context.Background(), rec.RunID)
		require.NoError(t, err)
		assert.Equal(t, rec.RiskAssessment, persisted.RiskAssessment)
		assert.Equal(t, rec.Summary.VerificationStatus, persisted.Summary.VerificationStatus)
		assert.Len(t, persisted.AuditLog, len(rec.AuditLog))
	})
}

// ============================================================
// Drive: the identity gate
// ============================================================

func TestEngineDriveIdentityGate(t *testing.T) {
	newGatedRun := func(t *testing.T) (*Engine, *store.MemoryStore, *record.VerificationRecord) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			identityFailedAgent(t),
			webAgentWithEmployer(t, "Acme Corp"),
			payslipVerifiedAgent(t, "Acme Corp"),
		})
		rec := startedRun(t, e, st)
		return e, st, rec
	}

	t.Run("failed identity suspends the run", func(t *testing.T) {
		e, st, rec := newGatedRun(t)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusSuspended, status)

		pending := rec.UnresolvedReviews()
		require.Len(t, pending, 1)
		assert.Equal(t, id.VerificationIdentity, pending[0].Type)
		assert.Equal(t, []string{"ID document has expired"}, pending[0].Issues)

		persisted, err := st.Get(context.Background(), rec.RunID)
		require.NoError(t, err)
		assert.Len(t, persisted.UnresolvedReviews(), 1)
	})

	t.Run("re-driving a suspended run does not duplicate the review", func(t *testing.T) {
		e, _, rec := newGatedRun(t)

		for range 3 {
			status, err := e.Drive(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, StatusSuspended, status)
		}
		assert.Len(t, rec.UnresolvedReviews(), 1)
	})

	t.Run("approval resumes through to completion", func(t *testing.T) {
		e, _, rec := newGatedRun(t)

		_, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)

		rec.ResolveReview(id.VerificationIdentity, record.ApprovalDetail{
			Approved:   true,
			Comments:   "document renewal confirmed with issuer",
			ReviewerID: id.NewReviewerID(),
		}, engineT0.Add(time.Hour))

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, status)
		require.NotNil(t, rec.RiskAssessment)
		assert.NotNil(t, rec.Result(id.VerificationPayslip))
	})

	t.Run("rejection aborts without summarizing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		st := store.NewMemoryStore()
		var events []audit.Event
		e := newTestEngine(t, st, []agents.Agent{
			identityFailedAgent(t),
			webAgentNoMentions(t),
			financialVerifiedAgent(t),
		}, WithAuditPublisher(collectingPublisher(ctrl, &events)))
		rec := startedRun(t, e, st)

		_, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)

		reviewerID := id.NewReviewerID()
		rec.ResolveReview(id.VerificationIdentity, record.ApprovalDetail{
			Approved:   false,
			Comments:   "document is counterfeit",
			ReviewerID: reviewerID,
		}, engineT0.Add(time.Hour))

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusAborted, status)

		assert.True(t, rec.Aborted)
		assert.Equal(t, "identity rejected by reviewer", rec.AbortReason)
		assert.Nil(t, rec.Summary)
		assert.Nil(t, rec.RiskAssessment)

		actions := auditActions(events)
		assert.Contains(t, actions, "run_aborted")
		assert.NotContains(t, actions, "summary_generated")
		assert.NotContains(t, actions, "risk_assessed")
		assert.NotContains(t, actions, "run_completed")
	})
}

// ============================================================
// Drive: agent failure handling
// ============================================================

func TestEngineDriveAgentFailures(t *testing.T) {
	t.Run("agent error becomes a reviewable processing failure", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			identityVerifiedAgent(t),
			webAgentWithEmployer(t, "Acme Corp"),
			agentReturning(id.VerificationPayslip, nil, errors.New("ocr backend unavailable")),
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusAwaitingReviews, status)

		result := rec.Result(id.VerificationPayslip)
		require.NotNil(t, result)
		assert.False(t, result.Verified)
		assert.Equal(t, []string{"processing error: ocr backend unavailable"}, result.Issues)

		pending := rec.UnresolvedMandatoryReviews()
		require.Len(t, pending, 1)
		assert.Equal(t, id.VerificationPayslip, pending[0].Type)
	})

	t.Run("agent panic is contained the same way", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			identityVerifiedAgent(t),
			webAgentWithEmployer(t, "Acme Corp"),
			&stubAgent{typ: id.VerificationPayslip, run: func(context.Context, *record.VerificationRecord) (*record.VerificationResult, error) {
				panic("nil dereference in parser")
			}},
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusAwaitingReviews, status)

		result := rec.Result(id.VerificationPayslip)
		require.NotNil(t, result)
		assert.Equal(t, []string{"processing error: agent panic: nil dereference in parser"}, result.Issues)
	})

	t.Run("identity agent error parks at the blocking review", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			agentReturning(id.VerificationIdentity, nil, errors.New("registry timeout")),
			webAgentNoMentions(t),
			financialVerifiedAgent(t),
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusSuspended, status)

		pending := rec.UnresolvedReviews()
		require.Len(t, pending, 1)
		assert.Equal(t, id.VerificationIdentity, pending[0].Type)
		assert.Equal(t, []string{"processing error: registry timeout"}, pending[0].Issues)
	})

	t.Run("context cancellation propagates instead of converting", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			agentReturning(id.VerificationIdentity, nil, context.Canceled),
		})
		rec := startedRun(t, e, st)

		_, err := e.Drive(context.Background(), rec)
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, rec.Result(id.VerificationIdentity))
	})

	t.Run("canceled context stops the loop between steps", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{identityVerifiedAgent(t)})
		rec := startedRun(t, e, st)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.Drive(ctx, rec)
		require.ErrorIs(t, err, context.Canceled)
	})
}

// ============================================================
// Drive: plan revision and skipped steps
// ============================================================

func TestEngineDrivePlanRevision(t *testing.T) {
	t.Run("failed web check still falls back to financial reports", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			identityVerifiedAgent(t),
			agentReturning(id.VerificationWebReferences, nil, errors.New("search api down")),
			financialVerifiedAgent(t),
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)

		req := rec.Plan.Requirements[id.VerificationFinancialReports]
		require.NotNil(t, req)
		assert.True(t, req.Required)
		assert.Equal(t, "No employment information found, alternative verification needed", req.Reason)
		assert.NotNil(t, rec.Result(id.VerificationFinancialReports))

		// The failed web check is itself a mandatory step under review.
		assert.Equal(t, StatusAwaitingReviews, status)
		require.Len(t, rec.UnresolvedMandatoryReviews(), 1)

		rec.ResolveReview(id.VerificationWebReferences, record.ApprovalDetail{
			Approved:   true,
			Comments:   "manual search found the client",
			ReviewerID: id.NewReviewerID(),
		}, engineT0.Add(time.Hour))

		status, err = e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, status)
	})

	t.Run("zero mentions require financial reports and queue the web review", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			identityVerifiedAgent(t),
			webAgentNoMentions(t),
			financialVerifiedAgent(t),
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusAwaitingReviews, status)

		req := rec.Plan.Requirements[id.VerificationFinancialReports]
		require.NotNil(t, req)
		assert.True(t, req.Required)
		assert.Nil(t, rec.Plan.Requirements[id.VerificationPayslip])
		assert.NotNil(t, rec.Result(id.VerificationFinancialReports))

		pending := rec.UnresolvedMandatoryReviews()
		require.Len(t, pending, 1)
		assert.Equal(t, id.VerificationWebReferences, pending[0].Type)
		assert.Equal(t, []string{agents.IssueNoWebReferences}, pending[0].Issues)
	})

	t.Run("planned step without an agent is skipped, not stuck", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			identityVerifiedAgent(t),
			webAgentWithEmployer(t, "Acme Corp"),
			// No payslip agent even though the revision requires one.
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, status)

		req := rec.Plan.Requirements[id.VerificationPayslip]
		require.NotNil(t, req)
		assert.Equal(t, id.RequirementSkipped, req.Status)
		assert.Nil(t, rec.Result(id.VerificationPayslip))
	})

	t.Run("missing identity agent cannot pass the gate", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st, []agents.Agent{
			webAgentNoMentions(t),
			financialVerifiedAgent(t),
		})
		rec := startedRun(t, e, st)

		status, err := e.Drive(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, StatusSuspended, status)

		pending := rec.UnresolvedReviews()
		require.Len(t, pending, 1)
		assert.Equal(t, []string{"processing error: no identity agent registered"}, pending[0].Issues)
	})
}

// ============================================================
// Drive: persistence failures
// ============================================================

func TestEngineDriveSaveFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := mocks.NewMockStore(ctrl)
	mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("connection refused"))

	e := newTestEngine(t, mockStore, []agents.Agent{identityVerifiedAgent(t)})

	clientID, err := id.ParseClientID("CLT-4002")
	require.NoError(t, err)
	rec, err := e.NewRun(clientID, "Jane Smith", engineClientData(), engineT0)
	require.NoError(t, err)

	_, err = e.Drive(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Contains(t, err.Error(), "failed to save record")
}

func TestEngineNewEngineRequiresStore(t *testing.T) {
	_, err := NewEngine(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record store is required")
}
