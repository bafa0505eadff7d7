package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/audit"
	"provenance/pkg/requestcontext"

	"provenance/internal/agents"
	"provenance/internal/corroborate"
	"provenance/internal/planner"
	"provenance/internal/record"
	"provenance/internal/review"
	"provenance/internal/risk"
	"provenance/internal/run/metrics"
	"provenance/internal/summary"
)

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher

// Store persists verification records. The engine saves after every step so
// a crash or restart resumes from the last completed action.
type Store interface {
	Create(ctx context.Context, rec *record.VerificationRecord) error
	Get(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error)
	Save(ctx context.Context, rec *record.VerificationRecord) error
	ListOpenReviews(ctx context.Context) ([]record.QueuedReview, error)
}

// AuditPublisher fans run events out to the audit pipeline.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var tracer = otel.Tracer("provenance/internal/run")

// Engine executes router actions against a record: it invokes agents, queues
// reviews, revises the plan, runs corroborations, and produces the summary
// and risk assessment. Every step ends with a save, so the persisted record
// is the checkpoint.
//
// The engine does not lock. Callers (the manager) guarantee a single
// goroutine owns a record while Drive runs.
type Engine struct {
	store        Store
	agents       map[id.VerificationType]agents.Agent
	router       *Router
	planner      *planner.Planner
	broker       *review.Broker
	corroborator *corroborate.Corroborator
	summarizer   *summary.Summarizer
	assessor     *risk.Assessor

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	clock          func() time.Time
}

type EngineOption func(*Engine)

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) EngineOption {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

// WithClock overrides the step timestamp source.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine constructs an Engine over a record store and the available
// verification agents. Checks whose type has no agent are skipped at
// routing time rather than failing the run.
func NewEngine(store Store, agentList []agents.Agent, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}

	p := planner.New()
	e := &Engine{
		store:        store,
		agents:       make(map[id.VerificationType]agents.Agent, len(agentList)),
		router:       NewRouter(p),
		planner:      p,
		broker:       review.NewBroker(),
		corroborator: corroborate.New(),
		summarizer:   summary.New(),
		assessor:     risk.New(),
		clock:        time.Now,
	}
	for _, a := range agentList {
		e.agents[a.Type()] = a
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewRun builds the initial record for a client, with the initial plan
// installed. The caller persists and drives it.
func (e *Engine) NewRun(clientID id.ClientID, clientName string, data record.ClientData, now time.Time) (*record.VerificationRecord, error) {
	rec := record.New(id.NewRunID(), clientID, clientName, data, now)
	if err := rec.SetPlan(e.planner.CreateInitialPlan(now), now); err != nil {
		return nil, err
	}
	return rec, nil
}

// Drive advances the run until it completes, aborts, or parks for human
// input. The record is saved after every step. Context cancellation stops
// the loop between steps and propagates into agent calls.
func (e *Engine) Drive(ctx context.Context, rec *record.VerificationRecord) (Status, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		action := e.router.Route(rec)
		status, err := e.step(ctx, rec, action)
		if err != nil {
			return "", err
		}
		if action.Terminal() || action.Parks() {
			return status, nil
		}
	}
}

// step executes one routed action, saves the record, and emits the step's
// observability. The returned status is meaningful only for terminal and
// parking actions.
func (e *Engine) step(ctx context.Context, rec *record.VerificationRecord, action NextAction) (Status, error) {
	now := e.clock()
	ctx = requestcontext.WithTime(ctx, now)

	ctx, span := tracer.Start(ctx, "run.step", trace.WithAttributes(
		attribute.String("run_id", rec.RunID.String()),
		attribute.String("action", string(action.Kind)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		e.metrics.ObserveStepLatency(string(action.Kind), time.Since(start))
	}()

	var status Status
	var emissions []auditEmission
	switch action.Kind {
	case ActionMergeReviews:
		n := e.broker.ApplyResponses(rec, now)
		if e.logger != nil {
			e.logger.InfoContext(ctx, "merged review responses",
				slog.String("run_id", rec.RunID.String()),
				slog.Int("count", n))
		}

	case ActionRunCheck:
		ems, err := e.runCheck(ctx, rec, action.CheckType, now)
		if err != nil {
			return "", err
		}
		emissions = ems

	case ActionBlockingReview:
		if err := e.broker.RequestBlocking(rec, now); err != nil {
			return "", err
		}
		status = StatusSuspended

	case ActionAwaitReviews:
		status = StatusAwaitingReviews

	case ActionSummarize:
		s, err := e.summarizer.Build(rec)
		if err != nil {
			return "", err
		}
		rec.SetSummary(s, now)

	case ActionAssessRisk:
		a, err := e.assessor.Assess(rec)
		if err != nil {
			return "", err
		}
		if err := rec.SetRiskAssessment(a, now); err != nil {
			return "", err
		}
		e.metrics.ObserveRiskScore(a.Score)

	case ActionComplete:
		status = StatusCompleted

	case ActionAbort:
		if !rec.Aborted {
			rec.MarkAborted("identity rejected by reviewer", abortActor(rec), now)
		}
		status = StatusAborted

	default:
		return "", dErrors.Newf(dErrors.CodeInternal, "unroutable action %q", action.Kind)
	}

	if err := e.store.Save(ctx, rec); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save record")
	}

	// Audit only after the state is durable.
	for _, em := range emissions {
		e.emitAudit(ctx, em.action, rec, em.decision, em.reason)
	}
	switch action.Kind {
	case ActionBlockingReview:
		e.emitAudit(ctx, audit.EventRunSuspended, rec, "", "awaiting identity decision")
	case ActionSummarize:
		e.emitAudit(ctx, audit.EventSummaryGenerated, rec, "", "")
	case ActionAssessRisk:
		e.emitAudit(ctx, audit.EventRiskAssessed, rec, string(rec.RiskAssessment.Level), "")
	case ActionComplete:
		e.emitAudit(ctx, audit.EventRunCompleted, rec, string(rec.RiskAssessment.Level), "")
		e.metrics.IncrementRunOutcome(string(StatusCompleted))
	case ActionAbort:
		e.emitAudit(ctx, audit.EventRunAborted, rec, "rejected", rec.AbortReason)
		e.metrics.IncrementRunOutcome(string(StatusAborted))
	}

	return status, nil
}

// auditEmission is a pipeline audit event held back until the step's save
// lands. Audit must never report state that was lost to a failed write.
type auditEmission struct {
	action   audit.AuditEvent
	decision string
	reason   string
}

// runCheck invokes the agent for one verification type and folds the outcome
// into the record: result, advisory review, plan revision, corroborations.
// The returned emissions are published by the caller after the save.
func (e *Engine) runCheck(ctx context.Context, rec *record.VerificationRecord, t id.VerificationType, now time.Time) ([]auditEmission, error) {
	agent, ok := e.agents[t]
	if !ok {
		if e.logger != nil {
			e.logger.WarnContext(ctx, "no agent registered for check",
				slog.String("run_id", rec.RunID.String()),
				slog.String("type", t.String()))
		}
		if t == id.VerificationIdentity {
			// Identity has no plan entry to skip, and the run must not pass
			// the gate unchecked. Record a failure and let the blocking
			// review decide.
			rec.SetResult(t, &record.VerificationResult{
				Verified: false,
				Issues:   []string{"processing error: no identity agent registered"},
			}, now)
			e.metrics.IncrementCheckOutcome(t.String(), "error")
			return nil, nil
		}
		// A planned step with no agent would route forever.
		return nil, rec.MarkStepSkipped(t, "no agent registered", now)
	}

	rec.MarkCheckStarted(t, now)
	result, err := e.invoke(ctx, agent, rec)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case err != nil:
		// Infrastructure failure. The run continues with a failed result;
		// a failed identity parks at the blocking review on the next pass.
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "verification agent failed",
				slog.String("run_id", rec.RunID.String()),
				slog.String("type", t.String()),
				slog.String("error", err.Error()))
		}
		result = &record.VerificationResult{
			Verified: false,
			Issues:   []string{fmt.Sprintf("processing error: %v", err)},
		}
		e.metrics.IncrementCheckOutcome(t.String(), "error")
	case result.Verified:
		e.metrics.IncrementCheckOutcome(t.String(), "verified")
	default:
		e.metrics.IncrementCheckOutcome(t.String(), "unverified")
	}

	rec.SetResult(t, result, now)

	var emissions []auditEmission
	if t != id.VerificationIdentity && result.HasIssues() {
		if err := e.broker.QueueFromResult(rec, t, result, now); err != nil {
			return nil, err
		}
		emissions = append(emissions, auditEmission{
			action: audit.EventReviewRequested,
			reason: fmt.Sprintf("%s: %d issue(s)", t, len(result.Issues)),
		})
	}

	// The web check informs what further evidence the plan demands, whether
	// or not the check itself verified.
	if t == id.VerificationWebReferences {
		emissions = append(emissions, e.revisePlan(ctx, rec, result, now)...)
	}

	emissions = append(emissions, e.runCorroborations(rec, now)...)

	emissions = append(emissions, auditEmission{
		action:   audit.EventCheckCompleted,
		decision: checkOutcome(result),
	})
	return emissions, nil
}

// invoke runs the agent with a panic boundary: a panicking agent damages one
// step, not the process.
func (e *Engine) invoke(ctx context.Context, agent agents.Agent, rec *record.VerificationRecord) (result *record.VerificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()
	return agent.Run(ctx, rec)
}

func (e *Engine) revisePlan(ctx context.Context, rec *record.VerificationRecord, result *record.VerificationResult, now time.Time) []auditEmission {
	fields, err := record.WebReferencesFieldsOf(result)
	if err != nil {
		if e.logger != nil {
			e.logger.WarnContext(ctx, "web references payload unreadable, plan unchanged",
				slog.String("run_id", rec.RunID.String()),
				slog.String("error", err.Error()))
		}
		return nil
	}

	updates := e.planner.ReviseAfterWebCheck(planner.WebFindings{Mentions: fields.Mentions})
	if len(updates) == 0 {
		return nil
	}
	if err := rec.UpsertRequirements(updates, now); err != nil {
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "plan revision failed",
				slog.String("run_id", rec.RunID.String()),
				slog.String("error", err.Error()))
		}
		return nil
	}
	return []auditEmission{{
		action: audit.EventPlanRevised,
		reason: fmt.Sprintf("%d requirement(s) upserted", len(updates)),
	}}
}

// runCorroborations fills any cross-check slot whose inputs became ready on
// this step. Each corroboration runs at most once per run.
func (e *Engine) runCorroborations(rec *record.VerificationRecord, now time.Time) []auditEmission {
	var emissions []auditEmission
	if rec.CorroborationResults[id.CorroborationEmployment] == nil {
		if res, ok := e.corroborator.Employment(rec, now); ok {
			rec.SetCorroboration(id.CorroborationEmployment, res, now)
			emissions = append(emissions, auditEmission{
				action:   audit.EventCorroborationCompleted,
				decision: corroborationOutcome(res),
				reason:   string(id.CorroborationEmployment),
			})
		}
	}
	if rec.CorroborationResults[id.CorroborationFunds] == nil {
		if res, ok := e.corroborator.Funds(rec, now); ok {
			rec.SetCorroboration(id.CorroborationFunds, res, now)
			emissions = append(emissions, auditEmission{
				action:   audit.EventCorroborationCompleted,
				decision: corroborationOutcome(res),
				reason:   string(id.CorroborationFunds),
			})
		}
	}
	return emissions
}

func (e *Engine) emitAudit(ctx context.Context, action audit.AuditEvent, rec *record.VerificationRecord, decision, reason string) {
	if e.auditPublisher == nil {
		return
	}
	_ = e.auditPublisher.Emit(ctx, audit.Event{
		Category:  action.Category(),
		RunID:     rec.RunID,
		ClientID:  rec.ClientID,
		Subject:   rec.ClientName,
		Action:    string(action),
		Decision:  decision,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func abortActor(rec *record.VerificationRecord) string {
	if approval := rec.Approval(id.VerificationIdentity); approval != nil {
		return record.ActorReviewer(approval.ReviewerID)
	}
	return record.ActorSystem
}

func checkOutcome(result *record.VerificationResult) string {
	if result.Verified {
		return "verified"
	}
	return "unverified"
}

func corroborationOutcome(res *record.CorroborationResult) string {
	if res.Consistent {
		return "consistent"
	}
	return "inconsistent"
}
