package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/audit"
	"provenance/pkg/platform/middleware/device"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"

	"provenance/internal/record"
)

const defaultMaxConcurrentRuns = 8

// Decision is a reviewer's verdict on the blocking identity review.
type Decision struct {
	Approved   bool
	Comments   string
	ReviewerID id.ReviewerID
}

// Checkpoint caches the full record of a parked run. The durable store stays
// authoritative; the cache only spares reads a database round trip while a
// run waits on reviewers.
type Checkpoint interface {
	Save(ctx context.Context, rec *record.VerificationRecord) error
	Load(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error)
	Delete(ctx context.Context, runID id.RunID) error
}

// ManagerOption configures optional manager collaborators.
type ManagerOption func(*Manager)

// WithCheckpoint attaches a checkpoint cache for parked runs.
func WithCheckpoint(cp Checkpoint) ManagerOption {
	return func(m *Manager) {
		m.checkpoint = cp
	}
}

// Manager owns run lifecycles. It starts runs, serializes all mutations of a
// record behind a per-run lock, and re-drives parked runs when reviewer
// input arrives. Drives execute on a bounded pool; while a run is parked no
// goroutine is held for it.
type Manager struct {
	engine     *Engine
	group      *errgroup.Group
	checkpoint Checkpoint

	mu    sync.Mutex
	locks map[id.RunID]*sync.Mutex
}

// NewManager wraps an engine with lifecycle management. maxConcurrent caps
// simultaneously driven runs; zero or negative selects the default.
func NewManager(engine *Engine, maxConcurrent int, opts ...ManagerOption) (*Manager, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentRuns
	}
	group := &errgroup.Group{}
	group.SetLimit(maxConcurrent)
	m := &Manager{
		engine: engine,
		group:  group,
		locks:  make(map[id.RunID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// StartRun creates and persists the record for a client, then drives it in
// the background. The run ID returns immediately; callers poll the record or
// wait on review queues for progress.
func (m *Manager) StartRun(ctx context.Context, clientID id.ClientID, clientName string, data record.ClientData) (id.RunID, error) {
	now := requestcontext.Now(ctx)
	rec, err := m.engine.NewRun(clientID, clientName, data, now)
	if err != nil {
		return id.RunID{}, err
	}

	if err := m.engine.store.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return id.RunID{}, dErrors.New(dErrors.CodeConflict, "run already exists")
		}
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create run")
	}

	m.engine.emitAudit(ctx, audit.EventRunStarted, rec, "", "")
	m.schedule(rec.RunID)
	return rec.RunID, nil
}

// Resume applies a reviewer's identity decision to a suspended run and
// re-enters the engine loop. Approval lifts the gate; rejection is terminal.
func (m *Manager) Resume(ctx context.Context, runID id.RunID, decision Decision) error {
	rec, err := m.applyIdentityDecision(ctx, runID, decision)
	if err != nil {
		return err
	}

	m.emitReviewerAudit(ctx, audit.EventIdentityDecided, rec, decision.Approved, decision.ReviewerID)
	m.emitAudit(ctx, audit.EventRunResumed, rec)
	m.schedule(runID)
	return nil
}

// applyIdentityDecision validates and persists the decision under the run
// lock. Scheduling happens after the lock is released: schedule blocks when
// the pool is saturated, and a queued drive for this same run may be
// waiting on the lock we hold.
func (m *Manager) applyIdentityDecision(ctx context.Context, runID id.RunID, decision Decision) (*record.VerificationRecord, error) {
	lock := m.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rec.Aborted {
		return nil, dErrors.New(dErrors.CodeConflict, "run already aborted")
	}
	res := rec.Result(id.VerificationIdentity)
	if res == nil || res.Verified || rec.Approval(id.VerificationIdentity) != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "run is not awaiting an identity decision")
	}

	now := requestcontext.Now(ctx)
	m.engine.broker.Decide(rec, id.VerificationIdentity, decision.Approved, decision.Comments, decision.ReviewerID, now)
	if err := m.engine.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save record")
	}
	m.dropCheckpoint(ctx, runID)
	return rec, nil
}

// OverrideDataReadiness records an operator's declaration that the gathered
// evidence is sufficient and re-drives the run, letting summarization proceed
// past open mandatory reviews. The override is one-way and one-shot.
func (m *Manager) OverrideDataReadiness(ctx context.Context, runID id.RunID, reviewerID id.ReviewerID) error {
	rec, err := m.applyDataReadinessOverride(ctx, runID, reviewerID)
	if err != nil {
		return err
	}

	m.emitReviewerAudit(ctx, audit.EventDataReadinessOverridden, rec, true, reviewerID)
	m.schedule(runID)
	return nil
}

// applyDataReadinessOverride validates and persists the override under the
// run lock, released before the caller schedules.
func (m *Manager) applyDataReadinessOverride(ctx context.Context, runID id.RunID, reviewerID id.ReviewerID) (*record.VerificationRecord, error) {
	lock := m.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rec.Aborted {
		return nil, dErrors.New(dErrors.CodeConflict, "run already aborted")
	}
	if rec.RiskAssessment != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "run already completed")
	}
	if rec.DataReadinessOverride {
		return nil, dErrors.New(dErrors.CodeConflict, "data readiness already overridden")
	}

	now := requestcontext.Now(ctx)
	rec.SetDataReadinessOverride(record.ActorReviewer(reviewerID), now)
	if err := m.engine.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save record")
	}
	m.dropCheckpoint(ctx, runID)
	return rec, nil
}

// SubmitReviewResponse merges a non-blocking reviewer decision into the run
// and re-drives it. Identity decisions are rejected here: they go through
// Resume, which enforces the suspended-state protocol.
func (m *Manager) SubmitReviewResponse(ctx context.Context, runID id.RunID, resp record.ReviewResponse) error {
	if resp.Type == id.VerificationIdentity {
		return dErrors.New(dErrors.CodeInvalidInput, "identity decisions use the identity-decision endpoint")
	}
	if !resp.Type.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid verification type %q", resp.Type)
	}

	rec, err := m.appendReviewResponse(ctx, runID, resp)
	if err != nil {
		return err
	}

	m.emitReviewerAudit(ctx, audit.EventReviewSubmitted, rec, resp.Approved, resp.ReviewerID)
	m.schedule(runID)
	return nil
}

// appendReviewResponse validates and persists the response under the run
// lock, released before the caller schedules.
func (m *Manager) appendReviewResponse(ctx context.Context, runID id.RunID, resp record.ReviewResponse) (*record.VerificationRecord, error) {
	lock := m.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rec.Aborted {
		return nil, dErrors.New(dErrors.CodeConflict, "run already aborted")
	}
	if rec.RiskAssessment != nil {
		// The report is final. A late response would be recorded but never
		// merged, so refuse it; the item stays permanently pending and the
		// risk score already counted it.
		return nil, dErrors.New(dErrors.CodeConflict, "run already completed")
	}

	now := requestcontext.Now(ctx)
	rec.AddReviewResponse(resp, now)
	if err := m.engine.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save record")
	}
	m.dropCheckpoint(ctx, runID)
	return rec, nil
}

// GetRun loads the last persisted state of a run. Safe without the run lock:
// stores hand out snapshots, and in-flight mutations only publish on save.
// A checkpoint hit spares the database read; misses and cache errors fall
// through to the store.
func (m *Manager) GetRun(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error) {
	if m.checkpoint != nil {
		if rec, err := m.checkpoint.Load(ctx, runID); err == nil {
			return rec, nil
		}
	}
	return m.getRun(ctx, runID)
}

// ListOpenReviews returns pending review items across all runs, oldest
// request first.
func (m *Manager) ListOpenReviews(ctx context.Context) ([]record.QueuedReview, error) {
	items, err := m.engine.store.ListOpenReviews(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reviews")
	}
	return items, nil
}

// Wait blocks until every scheduled drive has returned. Call during shutdown
// after the HTTP server stops accepting work.
func (m *Manager) Wait() {
	_ = m.group.Wait()
}

func (m *Manager) getRun(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error) {
	rec, err := m.engine.store.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load run")
	}
	return rec, nil
}

// schedule queues a drive for the run. Drives are idempotent: routing an
// already parked or finished record re-parks or re-finishes it without side
// effects, so over-scheduling is safe.
func (m *Manager) schedule(runID id.RunID) {
	m.group.Go(func() error {
		m.drive(runID)
		return nil
	})
}

func (m *Manager) drive(runID id.RunID) {
	// Detached from the originating request: the run outlives the HTTP call
	// that started or resumed it.
	ctx := context.Background()

	lock := m.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	m.engine.metrics.RunStarted()
	defer m.engine.metrics.RunParked()

	rec, err := m.engine.store.Get(ctx, runID)
	if err != nil {
		if m.engine.logger != nil {
			m.engine.logger.Error("failed to load run for drive",
				slog.String("run_id", runID.String()),
				slog.String("error", err.Error()))
		}
		return
	}
	if rec.Aborted || rec.RiskAssessment != nil {
		// Over-scheduled after finishing. Driving again would re-emit the
		// terminal audit event.
		return
	}

	status, err := m.engine.Drive(ctx, rec)
	if err != nil {
		// The record keeps its last saved state; the next reviewer action
		// or resume re-drives from there.
		if m.engine.logger != nil {
			m.engine.logger.Error("run drive failed",
				slog.String("run_id", runID.String()),
				slog.String("error", err.Error()))
		}
		return
	}

	switch status {
	case StatusSuspended, StatusAwaitingReviews:
		m.saveCheckpoint(ctx, rec)
	case StatusCompleted, StatusAborted:
		m.dropCheckpoint(ctx, runID)
	}

	if m.engine.logger != nil {
		m.engine.logger.Info("run drive finished",
			slog.String("run_id", runID.String()),
			slog.String("status", string(status)))
	}
}

// Redrive schedules drives for previously started runs. Called at startup so
// runs that were in flight when the process stopped pick up where their last
// save left them. Terminal runs are filtered out by the drive itself.
func (m *Manager) Redrive(runIDs ...id.RunID) {
	for _, runID := range runIDs {
		m.schedule(runID)
	}
}

// saveCheckpoint refreshes the parked-run cache. Failures only cost the next
// read a database round trip, so they are logged and swallowed.
func (m *Manager) saveCheckpoint(ctx context.Context, rec *record.VerificationRecord) {
	if m.checkpoint == nil {
		return
	}
	if err := m.checkpoint.Save(ctx, rec); err != nil && m.engine.logger != nil {
		m.engine.logger.Warn("checkpoint save failed",
			slog.String("run_id", rec.RunID.String()),
			slog.String("error", err.Error()))
	}
}

// dropCheckpoint invalidates the cache after a mutation; the next drive
// writes a fresh copy if the run parks again.
func (m *Manager) dropCheckpoint(ctx context.Context, runID id.RunID) {
	if m.checkpoint == nil {
		return
	}
	if err := m.checkpoint.Delete(ctx, runID); err != nil && m.engine.logger != nil {
		m.engine.logger.Warn("checkpoint delete failed",
			slog.String("run_id", runID.String()),
			slog.String("error", err.Error()))
	}
}

func (m *Manager) lockFor(runID id.RunID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[runID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[runID] = lock
	}
	return lock
}

func (m *Manager) emitAudit(ctx context.Context, action audit.AuditEvent, rec *record.VerificationRecord) {
	m.engine.emitAudit(ctx, action, rec, "", "")
}

func (m *Manager) emitReviewerAudit(ctx context.Context, action audit.AuditEvent, rec *record.VerificationRecord, approved bool, reviewerID id.ReviewerID) {
	if m.engine.auditPublisher == nil {
		return
	}
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	_ = m.engine.auditPublisher.Emit(ctx, audit.Event{
		Category:    action.Category(),
		RunID:       rec.RunID,
		ClientID:    rec.ClientID,
		Subject:     rec.ClientName,
		Action:      string(action),
		Decision:    decision,
		ReviewerID:  reviewerID.String(),
		RequestID:   requestcontext.RequestID(ctx),
		DeviceLabel: device.GetDeviceLabel(ctx),
	})
}
