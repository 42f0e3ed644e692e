package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRow is returned when a lookup matches nothing.
var ErrNoRow = errors.New("users: no row")

// Repository persists users.
type Repository interface {
	Get(ctx context.Context, ownerAccountID, id int64) (*User, error)
	List(ctx context.Context, ownerAccountID int64) ([]User, error)
	Create(ctx context.Context, ownerAccountID int64, name string) (*User, error)
	Rename(ctx context.Context, ownerAccountID, id int64, name string) error
	Delete(ctx context.Context, ownerAccountID, id int64) error
	FindByConnectedAccount(ctx context.Context, ownerAccountID, connectedAccountID int64) (*User, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed users repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, owner_account_id, name, connected_account_id, created`

func (r *repository) Get(ctx context.Context, ownerAccountID, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE owner_account_id = $1 AND id = $2`,
		ownerAccountID, id)
	return scanUser(row)
}

func (r *repository) List(ctx context.Context, ownerAccountID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE owner_account_id = $1 ORDER BY name, id`,
		ownerAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, ownerAccountID int64, name string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (owner_account_id, name) VALUES ($1, $2)
		 RETURNING `+userColumns, ownerAccountID, name)
	return scanUser(row)
}

func (r *repository) Rename(ctx context.Context, ownerAccountID, id int64, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $3 WHERE owner_account_id = $1 AND id = $2`,
		ownerAccountID, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, ownerAccountID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM users WHERE owner_account_id = $1 AND id = $2`, ownerAccountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) FindByConnectedAccount(ctx context.Context, ownerAccountID, connectedAccountID int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE owner_account_id = $1 AND connected_account_id = $2`,
		ownerAccountID, connectedAccountID)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var connected pgtype.Int8
	if err := row.Scan(&u.ID, &u.OwnerAccountID, &u.Name, &connected, &u.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	if connected.Valid {
		v := connected.Int64
		u.ConnectedAccountID = &v
	}
	return &u, nil
}
