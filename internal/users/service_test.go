package users

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitbook/splitbook/internal/platform/httpx"
)

type memRepo struct {
	nextID    int64
	byID      map[int64]User
	deleteErr error
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, byID: make(map[int64]User)}
}

func (r *memRepo) Get(_ context.Context, ownerAccountID, id int64) (*User, error) {
	u, ok := r.byID[id]
	if !ok || u.OwnerAccountID != ownerAccountID {
		return nil, ErrNoRow
	}
	return &u, nil
}

func (r *memRepo) List(_ context.Context, ownerAccountID int64) ([]User, error) {
	var out []User
	for _, u := range r.byID {
		if u.OwnerAccountID == ownerAccountID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, ownerAccountID int64, name string) (*User, error) {
	u := User{ID: r.nextID, OwnerAccountID: ownerAccountID, Name: name}
	r.nextID++
	r.byID[u.ID] = u
	return &u, nil
}

func (r *memRepo) Rename(_ context.Context, ownerAccountID, id int64, name string) error {
	u, ok := r.byID[id]
	if !ok || u.OwnerAccountID != ownerAccountID {
		return ErrNoRow
	}
	u.Name = name
	r.byID[id] = u
	return nil
}

func (r *memRepo) Delete(_ context.Context, ownerAccountID, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	u, ok := r.byID[id]
	if !ok || u.OwnerAccountID != ownerAccountID {
		return ErrNoRow
	}
	delete(r.byID, id)
	return nil
}

func (r *memRepo) FindByConnectedAccount(_ context.Context, ownerAccountID, connectedAccountID int64) (*User, error) {
	for _, u := range r.byID {
		if u.OwnerAccountID == ownerAccountID && u.ConnectedAccountID != nil && *u.ConnectedAccountID == connectedAccountID {
			return &u, nil
		}
	}
	return nil, ErrNoRow
}

func TestCreateAndRename(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	u, err := svc.Create(context.Background(), 1, "bob")
	require.NoError(t, err)

	renamed, err := svc.Rename(context.Background(), 1, u.ID, "robert")
	require.NoError(t, err)
	assert.Equal(t, "robert", renamed.Name)

	_, err = svc.Rename(context.Background(), 2, u.ID, "eve")
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}

func TestGetScopedToOwner(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	u, err := svc.Create(context.Background(), 1, "bob")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 2, u.ID)
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}

func TestDeleteReferencedUserConflicts(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	u, err := svc.Create(context.Background(), 1, "bob")
	require.NoError(t, err)

	repo.deleteErr = &pgconn.PgError{Code: "23503", ConstraintName: "debts_user_fk"}
	err = svc.Delete(context.Background(), 1, u.ID)
	require.Error(t, err)
	assert.Equal(t, httpx.CodeConflict, httpx.AsError(err).Code)

	repo.deleteErr = nil
	require.NoError(t, svc.Delete(context.Background(), 1, u.ID))

	err = svc.Delete(context.Background(), 1, u.ID)
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}
