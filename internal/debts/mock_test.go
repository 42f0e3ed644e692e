package debts

import (
	"context"
	"time"

	"github.com/splitbook/splitbook/internal/users"
)

type debtKey struct {
	owner int64
	id    string
}

type memRepo struct {
	debts      map[debtKey]Debt
	intentions map[string]SyncIntention
}

func newMemRepo() *memRepo {
	return &memRepo{
		debts:      make(map[debtKey]Debt),
		intentions: make(map[string]SyncIntention),
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memRepo) Get(_ context.Context, ownerAccountID int64, id string) (*Debt, error) {
	d, ok := r.debts[debtKey{ownerAccountID, id}]
	if !ok {
		return nil, ErrNoRow
	}
	return &d, nil
}

func (r *memRepo) GetAllOwners(_ context.Context, id string) ([]Debt, error) {
	var out []Debt
	for k, d := range r.debts {
		if k.id == id {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) GetByReceiptKey(_ context.Context, ownerAccountID, receiptID, userID int64) (*Debt, error) {
	for k, d := range r.debts {
		if k.owner == ownerAccountID && d.UserID == userID &&
			d.ReceiptID != nil && *d.ReceiptID == receiptID {
			return &d, nil
		}
	}
	return nil, ErrNoRow
}

func (r *memRepo) List(_ context.Context, ownerAccountID int64, userID *int64) ([]Debt, error) {
	var out []Debt
	for k, d := range r.debts {
		if k.owner != ownerAccountID {
			continue
		}
		if userID != nil && d.UserID != *userID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *memRepo) Insert(_ context.Context, d Debt) error {
	r.debts[debtKey{d.OwnerAccountID, d.ID}] = d
	return nil
}

func (r *memRepo) Update(_ context.Context, d Debt) error {
	key := debtKey{d.OwnerAccountID, d.ID}
	if _, ok := r.debts[key]; !ok {
		return ErrNoRow
	}
	r.debts[key] = d
	return nil
}

func (r *memRepo) Upsert(_ context.Context, d Debt) error {
	r.debts[debtKey{d.OwnerAccountID, d.ID}] = d
	return nil
}

func (r *memRepo) Delete(_ context.Context, ownerAccountID int64, id string) error {
	key := debtKey{ownerAccountID, id}
	if _, ok := r.debts[key]; !ok {
		return ErrNoRow
	}
	delete(r.debts, key)
	return nil
}

func (r *memRepo) GetIntention(_ context.Context, debtID string) (*SyncIntention, error) {
	in, ok := r.intentions[debtID]
	if !ok {
		return nil, ErrNoRow
	}
	return &in, nil
}

func (r *memRepo) InsertIntention(_ context.Context, in SyncIntention) error {
	r.intentions[in.DebtID] = in
	return nil
}

func (r *memRepo) DeleteIntention(_ context.Context, debtID string) error {
	if _, ok := r.intentions[debtID]; !ok {
		return ErrNoRow
	}
	delete(r.intentions, debtID)
	return nil
}

func (r *memRepo) ListIntentions(_ context.Context, accountID int64) ([]SyncIntention, error) {
	var out []SyncIntention
	for _, in := range r.intentions {
		if in.OwnerAccountID == accountID {
			out = append(out, in)
			continue
		}
		for k := range r.debts {
			if k.id == in.DebtID && k.owner == accountID {
				out = append(out, in)
				break
			}
		}
	}
	return out, nil
}

type userKey struct {
	owner int64
	id    int64
}

type memUsers struct {
	users map[userKey]users.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[userKey]users.User)}
}

func (r *memUsers) add(u users.User) {
	r.users[userKey{u.OwnerAccountID, u.ID}] = u
}

func (r *memUsers) Get(_ context.Context, ownerAccountID, id int64) (*users.User, error) {
	u, ok := r.users[userKey{ownerAccountID, id}]
	if !ok {
		return nil, users.ErrNoRow
	}
	return &u, nil
}

func (r *memUsers) List(_ context.Context, ownerAccountID int64) ([]users.User, error) {
	var out []users.User
	for k, u := range r.users {
		if k.owner == ownerAccountID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUsers) Create(_ context.Context, ownerAccountID int64, name string) (*users.User, error) {
	u := users.User{ID: int64(len(r.users) + 1), OwnerAccountID: ownerAccountID, Name: name}
	r.add(u)
	return &u, nil
}

func (r *memUsers) Rename(_ context.Context, ownerAccountID, id int64, name string) error {
	key := userKey{ownerAccountID, id}
	u, ok := r.users[key]
	if !ok {
		return users.ErrNoRow
	}
	u.Name = name
	r.users[key] = u
	return nil
}

func (r *memUsers) Delete(_ context.Context, ownerAccountID, id int64) error {
	key := userKey{ownerAccountID, id}
	if _, ok := r.users[key]; !ok {
		return users.ErrNoRow
	}
	delete(r.users, key)
	return nil
}

func (r *memUsers) FindByConnectedAccount(_ context.Context, ownerAccountID, connectedAccountID int64) (*users.User, error) {
	for k, u := range r.users {
		if k.owner == ownerAccountID && u.ConnectedAccountID != nil && *u.ConnectedAccountID == connectedAccountID {
			return &u, nil
		}
	}
	return nil, users.ErrNoRow
}

type memSettings struct {
	autoAccept map[int64]bool
}

func (s *memSettings) AutoAcceptDebts(_ context.Context, accountID int64) (bool, error) {
	return s.autoAccept[accountID], nil
}

// connectedPair wires accounts 1 and 2 together: user 10 owned by account 1
// points at account 2 and user 20 owned by account 2 points back.
func connectedPair() *memUsers {
	repo := newMemUsers()
	one, two := int64(1), int64(2)
	repo.add(users.User{ID: 10, OwnerAccountID: 1, Name: "bob", ConnectedAccountID: &two})
	repo.add(users.User{ID: 20, OwnerAccountID: 2, Name: "alice", ConnectedAccountID: &one})
	return repo
}

func userFixture(owner, id int64, name string) users.User {
	return users.User{ID: id, OwnerAccountID: owner, Name: name}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
