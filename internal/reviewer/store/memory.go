// Package store persists reviewer accounts. The memory store backs unit
// tests and local development; the postgres store is the durable backend.
package store

import (
	"context"
	"sync"
	"time"

	"provenance/internal/reviewer/models"
	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

// InMemory keeps reviewer accounts in process memory.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.ReviewerID]models.Account
	byEmail  map[string]id.ReviewerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[id.ReviewerID]models.Account),
		byEmail:  make(map[string]id.ReviewerID),
	}
}

// CreateIfEmailAvailable stores a new account, enforcing case-insensitive
// email uniqueness. Returns sentinel.ErrAlreadyUsed when the email is taken.
func (s *InMemory) CreateIfEmailAvailable(_ context.Context, account *models.Account) error {
	key := models.NormalizeEmail(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.accounts[account.ID]; ok {
		return sentinel.ErrConflict
	}
	s.accounts[account.ID] = *account
	s.byEmail[key] = account.ID
	return nil
}

// FindByEmail looks up an account case-insensitively. Returns
// sentinel.ErrNotFound when absent.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reviewerID, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	account := s.accounts[reviewerID]
	return &account, nil
}

// FindByID returns the account for a reviewer id. Returns
// sentinel.ErrNotFound when absent.
func (s *InMemory) FindByID(_ context.Context, reviewerID id.ReviewerID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[reviewerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &account, nil
}

// SaveDeviceFingerprint records the device hash seen on the latest login.
func (s *InMemory) SaveDeviceFingerprint(_ context.Context, reviewerID id.ReviewerID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[reviewerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	account.LastDeviceFingerprint = fingerprint
	account.UpdatedAt = time.Now()
	s.accounts[reviewerID] = account
	return nil
}
