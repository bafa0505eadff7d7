package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"provenance/internal/reviewer/models"
	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

// uniqueViolation is the postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// Postgres stores reviewer accounts.
//
// Schema:
//
//	CREATE TABLE reviewer_accounts (
//	    id                 UUID PRIMARY KEY,
//	    email              TEXT NOT NULL UNIQUE,
//	    name               TEXT NOT NULL,
//	    password_hash      TEXT NOT NULL,
//	    active             BOOLEAN NOT NULL DEFAULT TRUE,
//	    device_fingerprint TEXT NOT NULL DEFAULT '',
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    updated_at         TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// CreateIfEmailAvailable inserts a new account. Email uniqueness is enforced
// by the unique index so concurrent creates race safely; the loser gets
// sentinel.ErrAlreadyUsed.
func (s *Postgres) CreateIfEmailAvailable(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO reviewer_accounts (id, email, name, password_hash, active, device_fingerprint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		account.ID.String(),
		models.NormalizeEmail(account.Email),
		account.Name,
		account.PasswordHash,
		account.Active,
		account.LastDeviceFingerprint,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert reviewer account: %w", err)
	}
	return nil
}

// FindByEmail looks up an account case-insensitively. Returns
// sentinel.ErrNotFound when absent.
func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, email, name, password_hash, active, device_fingerprint, created_at, updated_at
		FROM reviewer_accounts
		WHERE email = $1
	`
	return scanAccount(s.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

// FindByID returns the account for a reviewer id. Returns
// sentinel.ErrNotFound when absent.
func (s *Postgres) FindByID(ctx context.Context, reviewerID id.ReviewerID) (*models.Account, error) {
	query := `
		SELECT id, email, name, password_hash, active, device_fingerprint, created_at, updated_at
		FROM reviewer_accounts
		WHERE id = $1
	`
	return scanAccount(s.pool.QueryRow(ctx, query, reviewerID.String()))
}

// SaveDeviceFingerprint records the device hash seen on the latest login.
func (s *Postgres) SaveDeviceFingerprint(ctx context.Context, reviewerID id.ReviewerID, fingerprint string) error {
	query := `
		UPDATE reviewer_accounts
		SET device_fingerprint = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, reviewerID.String(), fingerprint)
	if err != nil {
		return fmt.Errorf("update device fingerprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account models.Account
		rawID   string
	)
	err := row.Scan(
		&rawID,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&account.Active,
		&account.LastDeviceFingerprint,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reviewer account: %w", err)
	}

	reviewerID, err := id.ParseReviewerID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse reviewer id: %w", err)
	}
	account.ID = reviewerID
	return &account, nil
}
