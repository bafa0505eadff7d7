//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "provenance/pkg/domain"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/audit/store/postgres"
	txcontext "provenance/pkg/platform/tx"
	"provenance/pkg/testutil/containers"
)

type PostgresAuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditStoreSuite))
}

func (s *PostgresAuditStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresAuditStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"outbox", "audit_events", "audit_compliance", "audit_security", "audit_ops")
	s.Require().NoError(err)
}

// TestOutboxRelayCycle walks one full producer-side cycle: append, pick up
// the unpublished batch oldest first, mark published, batch drains.
func (s *PostgresAuditStoreSuite) TestOutboxRelayCycle() {
	ctx := context.Background()
	runID := id.NewRunID()

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Subject:   "run " + runID.String(),
		Action:    string(audit.EventRunStarted),
	}))
	time.Sleep(10 * time.Millisecond) // created_at breaks batch ordering ties
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp:  time.Now().UTC(),
		RunID:      runID,
		Subject:    "run " + runID.String(),
		Action:     string(audit.EventIdentityDecided),
		Decision:   "approved",
		ReviewerID: id.NewReviewerID().String(),
	}))

	batch, err := s.store.NextBatch(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 2)
	s.Equal(string(audit.EventRunStarted), batch[0].Action, "oldest first")
	s.Equal(string(audit.EventIdentityDecided), batch[1].Action)
	s.Equal(audit.TopicOps, batch[0].Topic())
	s.Equal(audit.TopicCompliance, batch[1].Topic())

	// The outbox row id doubles as the event id inside the payload, which
	// becomes the Kafka message key downstream.
	var payload struct {
		ID       string `json:"ID"`
		Category string `json:"Category"`
		Action   string `json:"Action"`
		RunID    string `json:"RunID"`
		Decision string `json:"Decision"`
	}
	s.Require().NoError(json.Unmarshal(batch[1].Payload, &payload))
	s.Equal(batch[1].ID.String(), payload.ID)
	s.Equal(string(audit.CategoryCompliance), payload.Category)
	s.Equal(runID.String(), payload.RunID)
	s.Equal("approved", payload.Decision)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{batch[0].ID}))

	remaining, err := s.store.NextBatch(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(batch[1].ID, remaining[0].ID)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{remaining[0].ID}))
	empty, err := s.store.NextBatch(ctx, 10)
	s.Require().NoError(err)
	s.Empty(empty)
}

// TestAppendJoinsCallerTransaction verifies an append inside a caller-owned
// transaction rolls back with it, so audit rows never outlive the state
// change they describe.
func (s *PostgresAuditStoreSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(ctx, tx)

	s.Require().NoError(s.store.Append(txCtx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "run " + id.NewRunID().String(),
		Action:    string(audit.EventRunCompleted),
	}))
	s.Require().NoError(tx.Rollback())

	batch, err := s.store.NextBatch(ctx, 10)
	s.Require().NoError(err)
	s.Empty(batch, "rolled-back append must not reach the outbox")

	tx, err = s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx = txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.Append(txCtx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "run " + id.NewRunID().String(),
		Action:    string(audit.EventRunCompleted),
	}))
	s.Require().NoError(tx.Commit())

	batch, err = s.store.NextBatch(ctx, 10)
	s.Require().NoError(err)
	s.Len(batch, 1)
}

// TestMaterializedEvents covers the consumer-side audit_events table:
// idempotent inserts keyed by event id, per-run listing in timestamp order.
func (s *PostgresAuditStoreSuite) TestMaterializedEvents() {
	ctx := context.Background()
	runID := id.NewRunID()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	first := uuid.New()
	event := audit.Event{
		Category:    audit.CategoryCompliance,
		Timestamp:   base.Add(time.Minute),
		RunID:       runID,
		ClientID:    id.ClientID("CLT-2001"),
		Subject:     "identity review",
		Action:      string(audit.EventIdentityDecided),
		Decision:    "approved",
		ReviewerID:  "rev-1",
		RequestID:   "req-1",
		DeviceLabel: "Chrome on Mac OS X",
	}
	s.Require().NoError(s.store.AppendWithID(ctx, first, event))
	s.Require().NoError(s.store.AppendWithID(ctx, first, event), "redelivery must be a no-op")

	second := uuid.New()
	s.Require().NoError(s.store.AppendWithID(ctx, second, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: base,
		RunID:     runID,
		Action:    string(audit.EventRunStarted),
	}))

	events, err := s.store.ListByRun(ctx, runID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventRunStarted), events[0].Action, "timestamp order, not insert order")
	s.Equal(string(audit.EventIdentityDecided), events[1].Action)
	s.Equal("approved", events[1].Decision)
	s.Equal("Chrome on Mac OS X", events[1].DeviceLabel)
	s.Equal(runID, events[1].RunID)

	recent, err := s.store.ListRecent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(string(audit.EventIdentityDecided), recent[0].Action, "most recent first")
}

// TestCategoryTables verifies each per-category insert is idempotent and
// keeps the fields its table exists for, in particular IP and severity on
// security rows.
func (s *PostgresAuditStoreSuite) TestCategoryTables() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	complianceID := uuid.New()
	compliance := audit.ComplianceRecord{
		Timestamp:  base,
		RunID:      id.NewRunID(),
		ClientID:   "CLT-2001",
		Subject:    "identity review",
		Action:     string(audit.EventIdentityDecided),
		Decision:   "rejected",
		ReviewerID: "rev-1",
		RequestID:  "req-1",
	}
	s.Require().NoError(s.store.AppendCompliance(ctx, complianceID, compliance))
	s.Require().NoError(s.store.AppendCompliance(ctx, complianceID, compliance))
	s.Equal(1, s.countRows("audit_compliance"))

	securityID := uuid.New()
	security := audit.SecurityRecord{
		Timestamp:   base,
		Subject:     "reviewer@example.com",
		Action:      string(audit.EventReviewerLoginFailed),
		Reason:      "invalid_password",
		IP:          "203.0.113.7",
		RequestID:   "req-2",
		DeviceLabel: "Firefox on Linux",
		Severity:    string(audit.SeverityWarning),
	}
	s.Require().NoError(s.store.AppendSecurity(ctx, securityID, security))
	s.Require().NoError(s.store.AppendSecurity(ctx, securityID, security))
	s.Equal(1, s.countRows("audit_security"))

	var ip, severity string
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT ip, severity FROM audit_security WHERE id = $1`, securityID).Scan(&ip, &severity)
	s.Require().NoError(err)
	s.Equal("203.0.113.7", ip)
	s.Equal("warning", severity)

	opsID := uuid.New()
	opsRecord := audit.OpsRecord{
		Timestamp: base,
		RunID:     id.NewRunID(),
		Subject:   "web_references",
		Action:    string(audit.EventCheckCompleted),
		RequestID: "req-3",
	}
	s.Require().NoError(s.store.AppendOps(ctx, opsID, opsRecord))
	s.Require().NoError(s.store.AppendOps(ctx, opsID, opsRecord))
	s.Equal(1, s.countRows("audit_ops"))
}

func (s *PostgresAuditStoreSuite) countRows(table string) int {
	var n int
	err := s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
	s.Require().NoError(err)
	return n
}
