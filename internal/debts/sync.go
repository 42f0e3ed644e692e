package debts

import (
	"context"
	"errors"

	"github.com/splitbook/splitbook/internal/platform/db"
	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/users"
)

// Intentions lists sync intentions the account proposed or that target one
// of its debts.
func (s *Service) Intentions(ctx context.Context, accountID int64) ([]SyncIntention, error) {
	return s.repo.ListIntentions(ctx, accountID)
}

// ProposeSync records the caller's intention to bring the debt pair into the
// currently authoritative locked state. Only one intention may exist per
// debt id; a concurrent or repeated proposal fails with CONFLICT naming the
// existing proposer.
func (s *Service) ProposeSync(ctx context.Context, accountID int64, debtID string) (*SyncIntention, error) {
	rows, own, err := s.debtParties(ctx, accountID, debtID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetIntention(ctx, debtID); err == nil {
		return nil, httpx.Conflict("sync already proposed by account %d", existing.OwnerAccountID)
	} else if !errors.Is(err, ErrNoRow) {
		return nil, err
	}

	// The proposed locked state is the proposer's own when they hold a row,
	// otherwise the counterpart's state they intend to adopt.
	in := SyncIntention{DebtID: debtID, OwnerAccountID: accountID}
	if own != nil {
		in.LockedTimestamp = own.LockedTimestamp
	} else {
		in.LockedTimestamp = rows[0].LockedTimestamp
	}

	if err := s.repo.InsertIntention(ctx, in); err != nil {
		// Losing the uniqueness race is a normal CONFLICT, not a retry.
		if db.IsUniqueViolation(err, "") {
			return nil, httpx.Conflict("sync already proposed for debt %s", debtID)
		}
		return nil, err
	}
	return &in, nil
}

// AcceptSync resolves a pending intention proposed by the other side. When
// the proposer holds a row, the accepting account's row is updated (or
// created, sign-flipped) from it; when the proposer holds none, the
// proposer's mirror is materialized from the accepting account's row. The
// intention is deleted in the same transaction.
func (s *Service) AcceptSync(ctx context.Context, accountID int64, debtID string) error {
	in, err := s.repo.GetIntention(ctx, debtID)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("no sync intention for debt %s", debtID)
		}
		return err
	}
	if in.OwnerAccountID == accountID {
		return httpx.Forbidden("cannot accept own sync proposal")
	}
	rows, own, err := s.debtParties(ctx, accountID, debtID)
	if err != nil {
		return err
	}

	var proposerRow *Debt
	for i := range rows {
		if rows[i].OwnerAccountID == in.OwnerAccountID {
			proposerRow = &rows[i]
		}
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		switch {
		case proposerRow != nil && own != nil:
			updated := *own
			updated.Amount = NegateAmount(proposerRow.Amount)
			updated.CurrencyCode = proposerRow.CurrencyCode
			updated.Timestamp = proposerRow.Timestamp
			updated.LockedTimestamp = in.LockedTimestamp
			if err := repo.Update(ctx, updated); err != nil {
				return err
			}
		case proposerRow != nil:
			mirror, err := s.mirrorFor(ctx, accountID, in.OwnerAccountID, *proposerRow)
			if err != nil {
				return err
			}
			mirror.LockedTimestamp = in.LockedTimestamp
			if err := repo.Upsert(ctx, *mirror); err != nil {
				return err
			}
		case own != nil:
			mirror, err := s.mirrorFor(ctx, in.OwnerAccountID, accountID, *own)
			if err != nil {
				return err
			}
			if err := repo.Upsert(ctx, *mirror); err != nil {
				return err
			}
		default:
			return httpx.PreconditionFailed("no debt row left to synchronize for %s", debtID)
		}
		return repo.DeleteIntention(ctx, debtID)
	})
}

// RemoveSync deletes the pending intention: proposers withdraw their own,
// the other side rejects it. Either way the handshake resets.
func (s *Service) RemoveSync(ctx context.Context, accountID int64, debtID string) error {
	in, err := s.repo.GetIntention(ctx, debtID)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("no sync intention for debt %s", debtID)
		}
		return err
	}
	if in.OwnerAccountID != accountID {
		if _, _, err := s.debtParties(ctx, accountID, debtID); err != nil {
			return err
		}
	}
	return s.repo.DeleteIntention(ctx, debtID)
}

// debtParties loads all rows sharing the debt id and verifies the caller is
// a party: either an owner of one row or the connected counterparty of one.
func (s *Service) debtParties(ctx context.Context, accountID int64, debtID string) ([]Debt, *Debt, error) {
	rows, err := s.repo.GetAllOwners(ctx, debtID)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, httpx.NotFound("debt %s not found", debtID)
	}

	var own *Debt
	for i := range rows {
		if rows[i].OwnerAccountID == accountID {
			own = &rows[i]
		}
	}
	if own != nil {
		return rows, own, nil
	}

	for i := range rows {
		user, err := s.userRepo.Get(ctx, rows[i].OwnerAccountID, rows[i].UserID)
		if err != nil {
			if errors.Is(err, users.ErrNoRow) {
				continue
			}
			return nil, nil, err
		}
		if user.ConnectedAccountID != nil && *user.ConnectedAccountID == accountID {
			return rows, nil, nil
		}
	}
	return nil, nil, httpx.Forbidden("debt %s belongs to other accounts", debtID)
}

// mirrorFor builds the sign-flipped row owned by targetAccount from the
// source row owned by sourceAccount.
func (s *Service) mirrorFor(ctx context.Context, targetAccountID, sourceAccountID int64, source Debt) (*Debt, error) {
	user, err := s.userRepo.FindByConnectedAccount(ctx, targetAccountID, sourceAccountID)
	if err != nil {
		if errors.Is(err, users.ErrNoRow) {
			return nil, httpx.PreconditionFailed("accounts %d and %d are not connected", targetAccountID, sourceAccountID)
		}
		return nil, err
	}
	return &Debt{
		ID:              source.ID,
		OwnerAccountID:  targetAccountID,
		UserID:          user.ID,
		CurrencyCode:    source.CurrencyCode,
		Amount:          NegateAmount(source.Amount),
		Timestamp:       source.Timestamp,
		Created:         s.now(),
		Note:            source.Note,
		LockedTimestamp: source.LockedTimestamp,
	}, nil
}
