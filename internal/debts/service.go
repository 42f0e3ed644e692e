package debts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	xcurrency "golang.org/x/text/currency"

	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/users"
)

// SettingsSource exposes the auto-accept flag of an account.
type SettingsSource interface {
	AutoAcceptDebts(ctx context.Context, accountID int64) (bool, error)
}

// Service wraps the debt ledger rules: relocking, auto-accept mirroring and
// counterpart resolution.
type Service struct {
	repo     Repository
	userRepo users.Repository
	settings SettingsSource
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, userRepo users.Repository, settings SettingsSource) *Service {
	return &Service{repo: repo, userRepo: userRepo, settings: settings, now: time.Now}
}

// List returns the account's debts, optionally filtered by counterparty.
func (s *Service) List(ctx context.Context, ownerAccountID int64, userID *int64) ([]Debt, error) {
	return s.repo.List(ctx, ownerAccountID, userID)
}

// Get returns one of the account's debts.
func (s *Service) Get(ctx context.Context, ownerAccountID int64, id string) (*Debt, error) {
	d, err := s.repo.Get(ctx, ownerAccountID, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("debt %s not found", id)
		}
		return nil, err
	}
	return d, nil
}

// Add creates a debt. With auto-accept enabled the counterpart row is
// written in the same transaction, sign-flipped.
func (s *Service) Add(ctx context.Context, ownerAccountID int64, req AddDebtRequest) (*Debt, error) {
	var created *Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		d, err := s.add(ctx, repo, ownerAccountID, req, nil)
		created = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddBatch creates several debts in one transaction; the whole batch
// commits or the whole request fails.
func (s *Service) AddBatch(ctx context.Context, ownerAccountID int64, req AddBatchRequest) ([]Debt, error) {
	var out []Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, entry := range req.Debts {
			d, err := s.add(ctx, repo, ownerAccountID, entry, nil)
			if err != nil {
				return err
			}
			out = append(out, *d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update mutates a debt, applying the relock rule: changing amount,
// currency or timestamp on a locked debt stamps a fresh lockedTimestamp,
// while note-only changes never touch it. An explicit locked flag wins
// unconditionally.
func (s *Service) Update(ctx context.Context, ownerAccountID int64, id string, req UpdateDebtRequest) (*Debt, error) {
	var updated *Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		d, err := s.update(ctx, repo, ownerAccountID, id, req)
		updated = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateBatch mutates several debts in one transaction.
func (s *Service) UpdateBatch(ctx context.Context, ownerAccountID int64, req UpdateBatchRequest) ([]Debt, error) {
	var out []Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, entry := range req.Debts {
			d, err := s.update(ctx, repo, ownerAccountID, entry.ID, entry.UpdateDebtRequest)
			if err != nil {
				return err
			}
			out = append(out, *d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes a debt. With auto-accept enabled the counterpart row is
// deleted explicitly in the same transaction, never inferred from row counts.
func (s *Service) Remove(ctx context.Context, ownerAccountID int64, id string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.Get(ctx, ownerAccountID, id)
		if err != nil {
			if errors.Is(err, ErrNoRow) {
				return httpx.NotFound("debt %s not found", id)
			}
			return err
		}
		if err := repo.Delete(ctx, ownerAccountID, id); err != nil {
			return err
		}

		counterpart, err := s.counterpart(ctx, ownerAccountID, existing.UserID)
		if err != nil || counterpart == nil {
			return err
		}
		if err := repo.Delete(ctx, counterpart.accountID, id); err != nil && !errors.Is(err, ErrNoRow) {
			return err
		}
		return nil
	})
}

// UpsertFromReceipt creates or refreshes the derived debt for a locked
// receipt, keyed by (owner, receipt, user). Re-locking a receipt updates the
// existing row instead of duplicating it.
func (s *Service) UpsertFromReceipt(ctx context.Context, ownerAccountID, receiptID, userID int64, currencyCode, amount string, issued time.Time, note string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		existing, err := repo.GetByReceiptKey(ctx, ownerAccountID, receiptID, userID)
		if err != nil && !errors.Is(err, ErrNoRow) {
			return err
		}
		if existing == nil {
			req := AddDebtRequest{
				UserID:       userID,
				CurrencyCode: currencyCode,
				Amount:       amount,
				Timestamp:    issued,
				Note:         note,
			}
			_, err := s.add(ctx, repo, ownerAccountID, req, &receiptID)
			return err
		}
		req := UpdateDebtRequest{
			CurrencyCode: &currencyCode,
			Amount:       &amount,
			Timestamp:    &issued,
			Note:         &note,
		}
		_, err = s.update(ctx, repo, ownerAccountID, existing.ID, req)
		return err
	})
}

type counterpartRef struct {
	accountID int64
	userID    int64
}

// counterpart resolves the mirrored side of a debt against the given user,
// returning nil when the mutator has auto-accept disabled or the user is not
// connected to another account. A connected user without a reverse link is
// an invariant violation.
func (s *Service) counterpart(ctx context.Context, ownerAccountID, userID int64) (*counterpartRef, error) {
	autoAccept, err := s.settings.AutoAcceptDebts(ctx, ownerAccountID)
	if err != nil {
		return nil, err
	}
	if !autoAccept {
		return nil, nil
	}
	user, err := s.userRepo.Get(ctx, ownerAccountID, userID)
	if err != nil {
		if errors.Is(err, users.ErrNoRow) {
			return nil, httpx.NotFound("user %d not found", userID)
		}
		return nil, err
	}
	if user.ConnectedAccountID == nil {
		return nil, nil
	}
	reverse, err := s.userRepo.FindByConnectedAccount(ctx, *user.ConnectedAccountID, ownerAccountID)
	if err != nil {
		if errors.Is(err, users.ErrNoRow) {
			return nil, httpx.Internal("missing reverse user link for connected account %d", *user.ConnectedAccountID)
		}
		return nil, err
	}
	return &counterpartRef{accountID: *user.ConnectedAccountID, userID: reverse.ID}, nil
}

func (s *Service) add(ctx context.Context, repo Repository, ownerAccountID int64, req AddDebtRequest, receiptID *int64) (*Debt, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := validateCurrency(req.CurrencyCode); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.Get(ctx, ownerAccountID, req.UserID); err != nil {
		if errors.Is(err, users.ErrNoRow) {
			return nil, httpx.NotFound("user %d not found", req.UserID)
		}
		return nil, err
	}

	now := s.now()
	d := Debt{
		ID:             uuid.NewString(),
		OwnerAccountID: ownerAccountID,
		UserID:         req.UserID,
		CurrencyCode:   req.CurrencyCode,
		Amount:         req.Amount,
		Timestamp:      req.Timestamp,
		Created:        now,
		Note:           req.Note,
		ReceiptID:      receiptID,
	}
	if req.Locked != nil && *req.Locked {
		d.LockedTimestamp = &now
	}
	if err := repo.Insert(ctx, d); err != nil {
		return nil, err
	}
	if err := s.mirror(ctx, repo, d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) update(ctx context.Context, repo Repository, ownerAccountID int64, id string, req UpdateDebtRequest) (*Debt, error) {
	existing, err := repo.Get(ctx, ownerAccountID, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("debt %s not found", id)
		}
		return nil, err
	}

	d := *existing
	relock := false
	if req.Amount != nil && *req.Amount != d.Amount {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
		d.Amount = *req.Amount
		relock = true
	}
	if req.CurrencyCode != nil && *req.CurrencyCode != d.CurrencyCode {
		if err := validateCurrency(*req.CurrencyCode); err != nil {
			return nil, err
		}
		d.CurrencyCode = *req.CurrencyCode
		relock = true
	}
	if req.Timestamp != nil && !req.Timestamp.Equal(d.Timestamp) {
		d.Timestamp = *req.Timestamp
		relock = true
	}
	if req.Note != nil {
		d.Note = *req.Note
	}

	now := s.now()
	switch {
	case req.Locked != nil && *req.Locked:
		d.LockedTimestamp = &now
	case req.Locked != nil:
		d.LockedTimestamp = nil
	case relock && existing.Locked():
		d.LockedTimestamp = &now
	}

	if err := repo.Update(ctx, d); err != nil {
		return nil, err
	}
	if err := s.mirror(ctx, repo, d); err != nil {
		return nil, err
	}
	return &d, nil
}

// mirror upserts the sign-flipped counterpart row when the mutating account
// has auto-accept enabled and the user is connected.
func (s *Service) mirror(ctx context.Context, repo Repository, d Debt) error {
	ref, err := s.counterpart(ctx, d.OwnerAccountID, d.UserID)
	if err != nil || ref == nil {
		return err
	}
	mirrored := Debt{
		ID:              d.ID,
		OwnerAccountID:  ref.accountID,
		UserID:          ref.userID,
		CurrencyCode:    d.CurrencyCode,
		Amount:          NegateAmount(d.Amount),
		Timestamp:       d.Timestamp,
		Created:         d.Created,
		Note:            d.Note,
		LockedTimestamp: d.LockedTimestamp,
	}
	return repo.Upsert(ctx, mirrored)
}

func validateAmount(amount string) error {
	if !ValidAmount(amount) {
		return httpx.BadRequest("amount %q is not a valid decimal", amount)
	}
	return nil
}

func validateCurrency(code string) error {
	if _, err := xcurrency.ParseISO(code); err != nil {
		return httpx.BadRequest("unknown currency code %q", code)
	}
	return nil
}
