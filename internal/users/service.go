package users

import (
	"context"
	"errors"

	"github.com/splitbook/splitbook/internal/platform/db"
	"github.com/splitbook/splitbook/internal/platform/httpx"
)

// Service wraps user business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns one of the account's users.
func (s *Service) Get(ctx context.Context, ownerAccountID, id int64) (*User, error) {
	u, err := s.repo.Get(ctx, ownerAccountID, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("user %d not found", id)
		}
		return nil, err
	}
	return u, nil
}

// List returns all of the account's users.
func (s *Service) List(ctx context.Context, ownerAccountID int64) ([]User, error) {
	return s.repo.List(ctx, ownerAccountID)
}

// Create adds a counterparty user.
func (s *Service) Create(ctx context.Context, ownerAccountID int64, name string) (*User, error) {
	return s.repo.Create(ctx, ownerAccountID, name)
}

// Rename updates the user's display name.
func (s *Service) Rename(ctx context.Context, ownerAccountID, id int64, name string) (*User, error) {
	if err := s.repo.Rename(ctx, ownerAccountID, id, name); err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("user %d not found", id)
		}
		return nil, err
	}
	return s.repo.Get(ctx, ownerAccountID, id)
}

// Delete removes a user. Users still referenced by receipts or debts stay;
// the foreign-key violation is surfaced as CONFLICT.
func (s *Service) Delete(ctx context.Context, ownerAccountID, id int64) error {
	err := s.repo.Delete(ctx, ownerAccountID, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("user %d not found", id)
		}
		if db.IsForeignKeyViolation(err) {
			return httpx.Conflict("user %d is still referenced by receipts or debts", id)
		}
		return err
	}
	return nil
}
