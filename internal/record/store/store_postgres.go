package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
	txcontext "provenance/pkg/platform/tx"

	"provenance/internal/record"
)

// PostgresStore persists records as JSONB documents in verification_runs
// and mirrors review items into the review_items table so reviewer work
// queues can be queried without unpacking every document.
//
// Schema:
//
//	CREATE TABLE verification_runs (
//	    run_id      UUID PRIMARY KEY,
//	    client_id   TEXT NOT NULL,
//	    client_name TEXT NOT NULL,
//	    document    JSONB NOT NULL,
//	    aborted     BOOLEAN NOT NULL DEFAULT FALSE,
//	    risk_level  TEXT,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE review_items (
//	    id                UUID PRIMARY KEY,
//	    run_id            UUID NOT NULL REFERENCES verification_runs(run_id) ON DELETE CASCADE,
//	    verification_type TEXT NOT NULL,
//	    client_id         TEXT NOT NULL,
//	    issues            TEXT[] NOT NULL,
//	    status            TEXT NOT NULL,
//	    requested_at      TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX review_items_pending_idx ON review_items (status, requested_at);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a record store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// runRow is the converter between the table shape and the domain record.
type runRow struct {
	runID      uuid.UUID
	clientID   string
	clientName string
	document   []byte
	aborted    bool
	riskLevel  sql.NullString
	createdAt  time.Time
	updatedAt  time.Time
}

func rowFromRecord(rec *record.VerificationRecord) (runRow, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return runRow{}, fmt.Errorf("marshal record: %w", err)
	}
	row := runRow{
		runID:      uuid.UUID(rec.RunID),
		clientID:   rec.ClientID.String(),
		clientName: rec.ClientName,
		document:   doc,
		aborted:    rec.Aborted,
		createdAt:  rec.CreatedAt,
		updatedAt:  rec.UpdatedAt,
	}
	if rec.RiskAssessment != nil {
		row.riskLevel = sql.NullString{String: rec.RiskAssessment.Level.String(), Valid: true}
	}
	return row, nil
}

// Create inserts a new run. Returns sentinel.ErrConflict when the run id is
// already present.
func (s *PostgresStore) Create(ctx context.Context, rec *record.VerificationRecord) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_runs (run_id, client_id, client_name, document, aborted, risk_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		row.runID, row.clientID, row.clientName, row.document, row.aborted, row.riskLevel, row.createdAt, row.updatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification run: %w", err)
	}

	return s.syncReviewItems(ctx, rec)
}

// Get loads a run. Returns sentinel.ErrNotFound when absent.
func (s *PostgresStore) Get(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error) {
	query := `SELECT document FROM verification_runs WHERE run_id = $1`

	var doc []byte
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(runID)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query verification run: %w", err)
	}

	var rec record.VerificationRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// Save persists the current state of an existing run and re-syncs its
// review items.
func (s *PostgresStore) Save(ctx context.Context, rec *record.VerificationRecord) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE verification_runs
		SET document = $2, aborted = $3, risk_level = $4, updated_at = $5
		WHERE run_id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		row.runID, row.document, row.aborted, row.riskLevel, row.updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification run: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	return s.syncReviewItems(ctx, rec)
}

// ListActiveRunIDs returns the ids of runs that have neither aborted nor
// produced a risk assessment, oldest first. Startup recovery re-drives them.
func (s *PostgresStore) ListActiveRunIDs(ctx context.Context) ([]id.RunID, error) {
	query := `
		SELECT run_id FROM verification_runs
		WHERE aborted = FALSE AND risk_level IS NULL
		ORDER BY created_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active runs: %w", err)
	}
	defer rows.Close()

	var runIDs []id.RunID
	for rows.Next() {
		var runID uuid.UUID
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("scan active run id: %w", err)
		}
		runIDs = append(runIDs, id.RunID(runID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active runs: %w", err)
	}
	return runIDs, nil
}

// syncReviewItems upserts every review item carried by the record. Items
// are never deleted, matching the append-only queue semantics.
func (s *PostgresStore) syncReviewItems(ctx context.Context, rec *record.VerificationRecord) error {
	if len(rec.PendingReviews) == 0 {
		return nil
	}

	query := `
		INSERT INTO review_items (id, run_id, verification_type, client_id, issues, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`
	for _, item := range rec.PendingReviews {
		_, err := s.execer(ctx).ExecContext(ctx, query,
			uuid.UUID(item.ID),
			uuid.UUID(rec.RunID),
			item.Type.String(),
			item.ClientID.String(),
			pq.Array(item.Issues),
			item.Status.String(),
			item.RequestedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert review item: %w", err)
		}
	}
	return nil
}

// ListOpenReviews returns every pending review item across all runs,
// oldest request first.
func (s *PostgresStore) ListOpenReviews(ctx context.Context) ([]record.QueuedReview, error) {
	query := `
		SELECT id, run_id, verification_type, client_id, issues, requested_at
		FROM review_items
		WHERE status = $1
		ORDER BY requested_at ASC, run_id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, id.ReviewPending.String())
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}
	defer rows.Close()

	var open []record.QueuedReview
	for rows.Next() {
		var (
			itemID      uuid.UUID
			runID       uuid.UUID
			vType       string
			clientID    string
			issues      []string
			requestedAt time.Time
		)
		if err := rows.Scan(&itemID, &runID, &vType, &clientID, pq.Array(&issues), &requestedAt); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		open = append(open, record.QueuedReview{
			RunID: id.RunID(runID),
			ReviewItem: record.ReviewItem{
				ID:          id.ReviewItemID(itemID),
				Type:        id.VerificationType(vType),
				ClientID:    id.ClientID(clientID),
				Issues:      issues,
				Status:      id.ReviewPending,
				RequestedAt: requestedAt,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review items: %w", err)
	}
	return open, nil
}
