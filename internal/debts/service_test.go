package debts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitbook/splitbook/internal/platform/httpx"
)

func newTestService(repo *memRepo, userRepo *memUsers, autoAccept map[int64]bool, now time.Time) *Service {
	s := NewService(repo, userRepo, &memSettings{autoAccept: autoAccept})
	s.now = fixedClock(now)
	return s
}

func TestNegateAmount(t *testing.T) {
	assert.Equal(t, "-12.34", NegateAmount("12.34"))
	assert.Equal(t, "12.34", NegateAmount("-12.34"))
	assert.Equal(t, "0.00", NegateAmount("0.00"))
	assert.Equal(t, "-0.1", NegateAmount("0.1"))
}

func TestValidAmount(t *testing.T) {
	for _, ok := range []string{"0", "12", "-12", "12.3", "-12.34", "999999999999.99"} {
		assert.True(t, ValidAmount(ok), ok)
	}
	for _, bad := range []string{"", "12.345", "1e3", "12,34", ".5", "--1", "1."} {
		assert.False(t, ValidAmount(bad), bad)
	}
}

func TestAddLockedDebt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	svc := newTestService(repo, connectedPair(), nil, now)

	locked := true
	d, err := svc.Add(context.Background(), 1, AddDebtRequest{
		UserID:       10,
		CurrencyCode: "EUR",
		Amount:       "25.50",
		Timestamp:    now.Add(-time.Hour),
		Note:         "lunch",
		Locked:       &locked,
	})
	require.NoError(t, err)
	require.NotNil(t, d.LockedTimestamp)
	assert.Equal(t, now, *d.LockedTimestamp)
	assert.Equal(t, "25.50", d.Amount)
	assert.Len(t, repo.debts, 1)
}

func TestAddRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemRepo(), connectedPair(), nil, time.Now())

	_, err := svc.Add(context.Background(), 1, AddDebtRequest{
		UserID: 10, CurrencyCode: "EUR", Amount: "1.234", Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, httpx.CodeBadRequest, httpx.AsError(err).Code)

	_, err = svc.Add(context.Background(), 1, AddDebtRequest{
		UserID: 10, CurrencyCode: "ZZZ", Amount: "1.00", Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, httpx.CodeBadRequest, httpx.AsError(err).Code)

	_, err = svc.Add(context.Background(), 1, AddDebtRequest{
		UserID: 99, CurrencyCode: "EUR", Amount: "1.00", Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}

func TestAddMirrorsWhenAutoAccept(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	svc := newTestService(repo, connectedPair(), map[int64]bool{1: true}, now)

	locked := true
	d, err := svc.Add(context.Background(), 1, AddDebtRequest{
		UserID:       10,
		CurrencyCode: "EUR",
		Amount:       "25.50",
		Timestamp:    now,
		Locked:       &locked,
	})
	require.NoError(t, err)

	mirror, ok := repo.debts[debtKey{2, d.ID}]
	require.True(t, ok, "counterpart row missing")
	assert.Equal(t, "-25.50", mirror.Amount)
	assert.Equal(t, int64(20), mirror.UserID)
	assert.Equal(t, d.CurrencyCode, mirror.CurrencyCode)
	require.NotNil(t, mirror.LockedTimestamp)
	assert.Equal(t, *d.LockedTimestamp, *mirror.LockedTimestamp)
}

func TestAddSkipsMirrorWhenAutoAcceptOff(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, connectedPair(), map[int64]bool{1: false}, time.Now())

	_, err := svc.Add(context.Background(), 1, AddDebtRequest{
		UserID: 10, CurrencyCode: "EUR", Amount: "5.00", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Len(t, repo.debts, 1)
}

func TestAddSkipsMirrorForUnconnectedUser(t *testing.T) {
	repo := newMemRepo()
	userRepo := connectedPair()
	userRepo.add(userFixture(1, 11, "carol"))
	svc := newTestService(repo, userRepo, map[int64]bool{1: true}, time.Now())

	_, err := svc.Add(context.Background(), 1, AddDebtRequest{
		UserID: 11, CurrencyCode: "EUR", Amount: "5.00", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Len(t, repo.debts, 1)
}

func TestUpdateNoteNeverRelocks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-24 * time.Hour)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: lockedAt, LockedTimestamp: &lockedAt,
	}
	svc := newTestService(repo, connectedPair(), nil, now)

	note := "updated note"
	d, err := svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Note: &note})
	require.NoError(t, err)
	require.NotNil(t, d.LockedTimestamp)
	assert.Equal(t, lockedAt, *d.LockedTimestamp, "note change must not move the lock")
	assert.Equal(t, "updated note", d.Note)
}

func TestUpdateAmountRelocksLockedDebt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-24 * time.Hour)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: lockedAt, LockedTimestamp: &lockedAt,
	}
	svc := newTestService(repo, connectedPair(), nil, now)

	amount := "12.00"
	d, err := svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Amount: &amount})
	require.NoError(t, err)
	require.NotNil(t, d.LockedTimestamp)
	assert.Equal(t, now, *d.LockedTimestamp)
}

func TestUpdateSameAmountDoesNotRelock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-24 * time.Hour)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: lockedAt, LockedTimestamp: &lockedAt,
	}
	svc := newTestService(repo, connectedPair(), nil, now)

	amount := "10.00"
	d, err := svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Amount: &amount})
	require.NoError(t, err)
	require.NotNil(t, d.LockedTimestamp)
	assert.Equal(t, lockedAt, *d.LockedTimestamp)
}

func TestUpdateUnlockedDebtStaysUnlocked(t *testing.T) {
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: time.Now(),
	}
	svc := newTestService(repo, connectedPair(), nil, time.Now())

	amount := "12.00"
	d, err := svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Amount: &amount})
	require.NoError(t, err)
	assert.Nil(t, d.LockedTimestamp)
}

func TestUpdateExplicitLockedFlagWins(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-24 * time.Hour)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: lockedAt, LockedTimestamp: &lockedAt,
	}
	svc := newTestService(repo, connectedPair(), nil, now)

	amount := "12.00"
	unlock := false
	d, err := svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Amount: &amount, Locked: &unlock})
	require.NoError(t, err)
	assert.Nil(t, d.LockedTimestamp, "explicit unlock overrides the relock rule")

	lock := true
	d, err = svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Locked: &lock})
	require.NoError(t, err)
	require.NotNil(t, d.LockedTimestamp)
	assert.Equal(t, now, *d.LockedTimestamp)
}

func TestUpdateMirrorsWhenAutoAccept(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: now,
	}
	repo.debts[debtKey{2, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 2, UserID: 20, CurrencyCode: "EUR",
		Amount: "-10.00", Timestamp: now,
	}
	svc := newTestService(repo, connectedPair(), map[int64]bool{1: true}, now)

	amount := "15.00"
	_, err := svc.Update(context.Background(), 1, "d1", UpdateDebtRequest{Amount: &amount})
	require.NoError(t, err)

	mirror := repo.debts[debtKey{2, "d1"}]
	assert.Equal(t, "-15.00", mirror.Amount)
}

func TestRemoveDeletesCounterpartWhenAutoAccept(t *testing.T) {
	now := time.Now()
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR", Amount: "10.00", Timestamp: now}
	repo.debts[debtKey{2, "d1"}] = Debt{ID: "d1", OwnerAccountID: 2, UserID: 20, CurrencyCode: "EUR", Amount: "-10.00", Timestamp: now}
	svc := newTestService(repo, connectedPair(), map[int64]bool{1: true}, now)

	require.NoError(t, svc.Remove(context.Background(), 1, "d1"))
	assert.Empty(t, repo.debts)
}

func TestRemoveKeepsCounterpartWhenAutoAcceptOff(t *testing.T) {
	now := time.Now()
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR", Amount: "10.00", Timestamp: now}
	repo.debts[debtKey{2, "d1"}] = Debt{ID: "d1", OwnerAccountID: 2, UserID: 20, CurrencyCode: "EUR", Amount: "-10.00", Timestamp: now}
	svc := newTestService(repo, connectedPair(), nil, now)

	require.NoError(t, svc.Remove(context.Background(), 1, "d1"))
	assert.Len(t, repo.debts, 1)
	_, ok := repo.debts[debtKey{2, "d1"}]
	assert.True(t, ok)
}

func TestUpsertFromReceiptReusesRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	svc := newTestService(repo, connectedPair(), nil, now)

	require.NoError(t, svc.UpsertFromReceipt(context.Background(), 1, 7, 10, "EUR", "30.00", now, "dinner"))
	require.Len(t, repo.debts, 1)
	var first Debt
	for _, d := range repo.debts {
		first = d
	}
	require.NotNil(t, first.ReceiptID)
	assert.Equal(t, int64(7), *first.ReceiptID)

	require.NoError(t, svc.UpsertFromReceipt(context.Background(), 1, 7, 10, "EUR", "35.00", now, "dinner"))
	require.Len(t, repo.debts, 1, "re-locking must update, not duplicate")
	updated := repo.debts[debtKey{1, first.ID}]
	assert.Equal(t, "35.00", updated.Amount)
}
