package debts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitbook/splitbook/internal/platform/httpx"
)

func pairedRepo(now time.Time, lockedA, lockedB *time.Time) *memRepo {
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: now, LockedTimestamp: lockedA,
	}
	repo.debts[debtKey{2, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 2, UserID: 20, CurrencyCode: "EUR",
		Amount: "-10.00", Timestamp: now, LockedTimestamp: lockedB,
	}
	return repo
}

func TestProposeSync(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-time.Hour)
	repo := pairedRepo(now, &lockedAt, nil)
	svc := newTestService(repo, connectedPair(), nil, now)

	in, err := svc.ProposeSync(context.Background(), 1, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), in.OwnerAccountID)
	require.NotNil(t, in.LockedTimestamp)
	assert.Equal(t, lockedAt, *in.LockedTimestamp)
}

func TestProposeSyncConflictsWithExisting(t *testing.T) {
	now := time.Now()
	repo := pairedRepo(now, nil, nil)
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 2}
	svc := newTestService(repo, connectedPair(), nil, now)

	_, err := svc.ProposeSync(context.Background(), 1, "d1")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeConflict, httpx.AsError(err).Code)
	assert.Contains(t, err.Error(), "account 2")
}

func TestProposeSyncRequiresParty(t *testing.T) {
	now := time.Now()
	repo := pairedRepo(now, nil, nil)
	svc := newTestService(repo, connectedPair(), nil, now)

	_, err := svc.ProposeSync(context.Background(), 3, "d1")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeForbidden, httpx.AsError(err).Code)

	_, err = svc.ProposeSync(context.Background(), 1, "4f2f3f44-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}

func TestAcceptSyncRejectsOwnProposal(t *testing.T) {
	now := time.Now()
	repo := pairedRepo(now, nil, nil)
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 1}
	svc := newTestService(repo, connectedPair(), nil, now)

	err := svc.AcceptSync(context.Background(), 1, "d1")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeForbidden, httpx.AsError(err).Code)
}

func TestAcceptSyncUpdatesExistingRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-time.Hour)
	repo := pairedRepo(now, &lockedAt, nil)
	repo.debts[debtKey{1, "d1"}] = withAmount(repo.debts[debtKey{1, "d1"}], "12.50")
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 1, LockedTimestamp: &lockedAt}
	svc := newTestService(repo, connectedPair(), nil, now)

	require.NoError(t, svc.AcceptSync(context.Background(), 2, "d1"))

	accepted := repo.debts[debtKey{2, "d1"}]
	assert.Equal(t, "-12.50", accepted.Amount)
	require.NotNil(t, accepted.LockedTimestamp)
	assert.Equal(t, lockedAt, *accepted.LockedTimestamp)
	assert.Empty(t, repo.intentions, "intention must be consumed")
}

func TestAcceptSyncCreatesMissingMirror(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-time.Hour)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: now, LockedTimestamp: &lockedAt,
	}
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 1, LockedTimestamp: &lockedAt}
	svc := newTestService(repo, connectedPair(), nil, now)

	require.NoError(t, svc.AcceptSync(context.Background(), 2, "d1"))

	mirror, ok := repo.debts[debtKey{2, "d1"}]
	require.True(t, ok)
	assert.Equal(t, "-10.00", mirror.Amount)
	assert.Equal(t, int64(20), mirror.UserID)
	require.NotNil(t, mirror.LockedTimestamp)
	assert.Equal(t, lockedAt, *mirror.LockedTimestamp)
}

func TestAcceptSyncMaterializesProposerRow(t *testing.T) {
	// Account 2 proposed without holding a row; account 1 accepts and the
	// proposer's mirror is created from account 1's state.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(-time.Hour)
	repo := newMemRepo()
	repo.debts[debtKey{1, "d1"}] = Debt{
		ID: "d1", OwnerAccountID: 1, UserID: 10, CurrencyCode: "EUR",
		Amount: "10.00", Timestamp: now, LockedTimestamp: &lockedAt,
	}
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 2, LockedTimestamp: &lockedAt}
	svc := newTestService(repo, connectedPair(), nil, now)

	require.NoError(t, svc.AcceptSync(context.Background(), 1, "d1"))

	mirror, ok := repo.debts[debtKey{2, "d1"}]
	require.True(t, ok)
	assert.Equal(t, "-10.00", mirror.Amount)
	assert.Equal(t, int64(20), mirror.UserID)
	assert.Empty(t, repo.intentions)
}

func TestAcceptSyncWithoutIntention(t *testing.T) {
	now := time.Now()
	repo := pairedRepo(now, nil, nil)
	svc := newTestService(repo, connectedPair(), nil, now)

	err := svc.AcceptSync(context.Background(), 2, "d1")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}

func TestRemoveSyncByEitherParty(t *testing.T) {
	now := time.Now()
	repo := pairedRepo(now, nil, nil)
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 1}
	svc := newTestService(repo, connectedPair(), nil, now)

	require.NoError(t, svc.RemoveSync(context.Background(), 2, "d1"))
	assert.Empty(t, repo.intentions)

	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 1}
	require.NoError(t, svc.RemoveSync(context.Background(), 1, "d1"))
	assert.Empty(t, repo.intentions)
}

func TestRemoveSyncRequiresParty(t *testing.T) {
	now := time.Now()
	repo := pairedRepo(now, nil, nil)
	repo.intentions["d1"] = SyncIntention{DebtID: "d1", OwnerAccountID: 1}
	svc := newTestService(repo, connectedPair(), nil, now)

	err := svc.RemoveSync(context.Background(), 3, "d1")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeForbidden, httpx.AsError(err).Code)
}

func withAmount(d Debt, amount string) Debt {
	d.Amount = amount
	return d
}
