package receipts

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"time"

	xcurrency "golang.org/x/text/currency"

	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/users"
)

// DebtWriter upserts the debt derived for one receipt participant. Derived
// debts are keyed by (owner, receipt, user), so repeated locks update the
// same row.
type DebtWriter interface {
	UpsertFromReceipt(ctx context.Context, ownerAccountID, receiptID, userID int64, currencyCode, amount string, issued time.Time, note string) error
}

// Service wraps the receipt rules: the locked-receipt mutation guard, the
// coverage check and the debt derivation on lock.
type Service struct {
	repo     Repository
	userRepo users.Repository
	debts    DebtWriter
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, userRepo users.Repository, debts DebtWriter) *Service {
	return &Service{repo: repo, userRepo: userRepo, debts: debts, now: time.Now}
}

// List returns the account's receipts.
func (s *Service) List(ctx context.Context, ownerAccountID int64) ([]Receipt, error) {
	return s.repo.List(ctx, ownerAccountID)
}

// Get returns a receipt with items, participants and shares.
func (s *Service) Get(ctx context.Context, ownerAccountID, id int64) (*Detail, error) {
	rec, err := s.get(ctx, s.repo, ownerAccountID, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	shares, err := s.repo.ListShares(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Receipt: *rec, Items: items, Participants: participants, Shares: shares}, nil
}

// Create opens a new receipt.
func (s *Service) Create(ctx context.Context, ownerAccountID int64, req CreateReceiptRequest) (*Receipt, error) {
	issued, err := parseIssued(req.Issued)
	if err != nil {
		return nil, err
	}
	if _, err := xcurrency.ParseISO(req.CurrencyCode); err != nil {
		return nil, httpx.BadRequest("unknown currency code %q", req.CurrencyCode)
	}
	return s.repo.Insert(ctx, ownerAccountID, req.Name, issued, req.CurrencyCode)
}

// Update mutates receipt fields and handles lock transitions. Field changes
// on a locked receipt are forbidden unless the same request unlocks it;
// unlocking never retracts already-derived debts.
func (s *Service) Update(ctx context.Context, ownerAccountID, id int64, req UpdateReceiptRequest) (*Receipt, error) {
	var out *Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := s.get(ctx, repo, ownerAccountID, id)
		if err != nil {
			return err
		}

		unlocking := req.Locked != nil && !*req.Locked
		hasFieldChange := req.Name != nil || req.Issued != nil || req.CurrencyCode != nil
		if rec.Locked() && hasFieldChange && !unlocking {
			return httpx.Forbidden("receipt %d is locked", id)
		}

		if req.Name != nil {
			rec.Name = *req.Name
		}
		if req.Issued != nil {
			issued, err := parseIssued(*req.Issued)
			if err != nil {
				return err
			}
			rec.Issued = issued
		}
		if req.CurrencyCode != nil {
			if _, err := xcurrency.ParseISO(*req.CurrencyCode); err != nil {
				return httpx.BadRequest("unknown currency code %q", *req.CurrencyCode)
			}
			rec.CurrencyCode = *req.CurrencyCode
		}

		switch {
		case req.Locked != nil && *req.Locked:
			if err := s.lock(ctx, repo, rec); err != nil {
				return err
			}
		case unlocking:
			rec.LockedAt = nil
		}

		out = rec
		return repo.Update(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a receipt with its items and shares.
func (s *Service) Delete(ctx context.Context, ownerAccountID, id int64) error {
	if err := s.repo.Delete(ctx, ownerAccountID, id); err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("receipt %d not found", id)
		}
		return err
	}
	return nil
}

// AddItem appends a line to an unlocked receipt.
func (s *Service) AddItem(ctx context.Context, ownerAccountID, receiptID int64, req ItemRequest) (*Item, error) {
	rec, err := s.get(ctx, s.repo, ownerAccountID, receiptID)
	if err != nil {
		return nil, err
	}
	if rec.Locked() {
		return nil, httpx.Forbidden("receipt %d is locked", receiptID)
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}
	return s.repo.InsertItem(ctx, receiptID, req.Title, req.Price, req.Quantity)
}

// UpdateItem replaces a line of an unlocked receipt.
func (s *Service) UpdateItem(ctx context.Context, ownerAccountID, itemID int64, req ItemRequest) (*Item, error) {
	item, rec, err := s.item(ctx, ownerAccountID, itemID)
	if err != nil {
		return nil, err
	}
	if rec.Locked() {
		return nil, httpx.Forbidden("receipt %d is locked", rec.ID)
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}
	item.Title = req.Title
	item.Price = req.Price
	item.Quantity = req.Quantity
	if err := s.repo.UpdateItem(ctx, *item); err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem deletes a line of an unlocked receipt.
func (s *Service) RemoveItem(ctx context.Context, ownerAccountID, itemID int64) error {
	_, rec, err := s.item(ctx, ownerAccountID, itemID)
	if err != nil {
		return err
	}
	if rec.Locked() {
		return httpx.Forbidden("receipt %d is locked", rec.ID)
	}
	return s.repo.DeleteItem(ctx, itemID)
}

// SetParticipants replaces the participant set of an unlocked receipt.
// Item shares of removed participants go with them.
func (s *Service) SetParticipants(ctx context.Context, ownerAccountID, receiptID int64, userIDs []int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := s.get(ctx, repo, ownerAccountID, receiptID)
		if err != nil {
			return err
		}
		if rec.Locked() {
			return httpx.Forbidden("receipt %d is locked", receiptID)
		}
		for _, userID := range userIDs {
			if err := s.checkUser(ctx, ownerAccountID, userID); err != nil {
				return err
			}
		}
		return repo.ReplaceParticipants(ctx, receiptID, userIDs)
	})
}

// AddParticipant adds one participant to an unlocked receipt.
func (s *Service) AddParticipant(ctx context.Context, ownerAccountID, receiptID, userID int64) error {
	rec, err := s.get(ctx, s.repo, ownerAccountID, receiptID)
	if err != nil {
		return err
	}
	if rec.Locked() {
		return httpx.Forbidden("receipt %d is locked", receiptID)
	}
	if err := s.checkUser(ctx, ownerAccountID, userID); err != nil {
		return err
	}
	return s.repo.AddParticipant(ctx, receiptID, userID)
}

// RemoveParticipant drops a participant and their item shares.
func (s *Service) RemoveParticipant(ctx context.Context, ownerAccountID, receiptID, userID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := s.get(ctx, repo, ownerAccountID, receiptID)
		if err != nil {
			return err
		}
		if rec.Locked() {
			return httpx.Forbidden("receipt %d is locked", receiptID)
		}
		if err := repo.RemoveParticipant(ctx, receiptID, userID); err != nil {
			if errors.Is(err, ErrNoRow) {
				return httpx.NotFound("user %d does not participate in receipt %d", userID, receiptID)
			}
			return err
		}
		return nil
	})
}

// SetShares replaces an item's participant shares. Every share user must
// already participate in the receipt.
func (s *Service) SetShares(ctx context.Context, ownerAccountID, itemID int64, req SetSharesRequest) error {
	item, rec, err := s.item(ctx, ownerAccountID, itemID)
	if err != nil {
		return err
	}
	if rec.Locked() {
		return httpx.Forbidden("receipt %d is locked", rec.ID)
	}

	participants, err := s.repo.ListParticipants(ctx, rec.ID)
	if err != nil {
		return err
	}
	member := make(map[int64]bool, len(participants))
	for _, id := range participants {
		member[id] = true
	}
	for _, share := range req.Participants {
		if !member[share.UserID] {
			return httpx.BadRequest("user %d does not participate in receipt %d", share.UserID, rec.ID)
		}
	}
	return s.repo.ReplaceItemShares(ctx, item.ID, req.Participants)
}

// lock validates coverage, derives the per-participant debts and stamps
// locked_at. Participants whose user is connected to the owner account get
// no debt.
func (s *Service) lock(ctx context.Context, repo Repository, rec *Receipt) error {
	items, err := repo.ListItems(ctx, rec.ID)
	if err != nil {
		return err
	}
	shares, err := repo.ListShares(ctx, rec.ID)
	if err != nil {
		return err
	}

	byItem := make(map[int64][]ItemShare)
	for _, share := range shares {
		if share.Part > 0 {
			byItem[share.ItemID] = append(byItem[share.ItemID], share)
		}
	}
	for _, it := range items {
		if len(byItem[it.ID]) == 0 {
			return httpx.Forbidden("item %q has no participant with a positive part", it.Title)
		}
	}

	totals := make(map[int64]float64)
	for _, it := range items {
		price, err := strconv.ParseFloat(it.Price, 64)
		if err != nil {
			return httpx.Internal("unreadable price for item %d", it.ID)
		}
		cost := price * float64(it.Quantity)

		var partsTotal float64
		for _, share := range byItem[it.ID] {
			partsTotal += share.Part
		}
		for _, share := range byItem[it.ID] {
			totals[share.UserID] += cost * share.Part / partsTotal
		}
	}

	for userID, total := range totals {
		user, err := s.userRepo.Get(ctx, rec.OwnerAccountID, userID)
		if err != nil {
			return err
		}
		if user.ConnectedAccountID != nil && *user.ConnectedAccountID == rec.OwnerAccountID {
			continue
		}
		amount := strconv.FormatFloat(math.Round(total*100)/100, 'f', 2, 64)
		if err := s.debts.UpsertFromReceipt(ctx, rec.OwnerAccountID, rec.ID, userID,
			rec.CurrencyCode, amount, rec.Issued, rec.Name); err != nil {
			return err
		}
	}

	now := s.now()
	rec.LockedAt = &now
	return nil
}

func (s *Service) get(ctx context.Context, repo Repository, ownerAccountID, id int64) (*Receipt, error) {
	rec, err := repo.Get(ctx, ownerAccountID, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("receipt %d not found", id)
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) item(ctx context.Context, ownerAccountID, itemID int64) (*Item, *Receipt, error) {
	item, rec, err := s.repo.GetItemWithReceipt(ctx, ownerAccountID, itemID)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, nil, httpx.NotFound("item %d not found", itemID)
		}
		return nil, nil, err
	}
	return item, rec, nil
}

func (s *Service) checkUser(ctx context.Context, ownerAccountID, userID int64) error {
	if _, err := s.userRepo.Get(ctx, ownerAccountID, userID); err != nil {
		if errors.Is(err, users.ErrNoRow) {
			return httpx.NotFound("user %d not found", userID)
		}
		return err
	}
	return nil
}

func parseIssued(s string) (time.Time, error) {
	issued, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, httpx.BadRequest("issued must be a YYYY-MM-DD date")
	}
	return issued, nil
}

var pricePattern = regexp.MustCompile(`^[0-9]{1,12}(\.[0-9]{1,2})?$`)

func validatePrice(price string) error {
	if !pricePattern.MatchString(price) {
		return httpx.BadRequest("price %q is not a valid decimal", price)
	}
	return nil
}
