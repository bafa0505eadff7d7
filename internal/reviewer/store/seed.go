package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"provenance/internal/reviewer/models"
	"provenance/internal/reviewer/secrets"
	id "provenance/pkg/domain"
	"provenance/pkg/email"
	"provenance/pkg/platform/sentinel"
)

// AccountStore is the subset of the account store the seeder needs. Both
// InMemory and Postgres satisfy it.
type AccountStore interface {
	CreateIfEmailAvailable(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// SeedBootstrapReviewer ensures a reviewer login exists so fresh deployments
// have a way in. Idempotent: when the email is already registered the
// existing account is returned and its password is left untouched.
func SeedBootstrapReviewer(ctx context.Context, accounts AccountStore, loginEmail, password string) (*models.Account, error) {
	existing, err := accounts.FindByEmail(ctx, loginEmail)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("look up bootstrap reviewer: %w", err)
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash bootstrap password: %w", err)
	}

	account, err := models.NewAccount(id.NewReviewerID(), loginEmail, email.DisplayName(loginEmail), hash, time.Now())
	if err != nil {
		return nil, err
	}

	if err := accounts.CreateIfEmailAvailable(ctx, account); err != nil {
		// Lost a race with another instance seeding the same account.
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return accounts.FindByEmail(ctx, loginEmail)
		}
		return nil, fmt.Errorf("create bootstrap reviewer: %w", err)
	}
	return account, nil
}
