package receipts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitbook/splitbook/internal/platform/db"
)

// ErrNoRow is returned when a lookup matches nothing.
var ErrNoRow = errors.New("receipts: no row")

// Repository persists receipts, items and participant shares. Item lookups
// always join the receipt so ownership can be checked in one round trip.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context, ownerAccountID int64) ([]Receipt, error)
	Get(ctx context.Context, ownerAccountID, id int64) (*Receipt, error)
	Insert(ctx context.Context, ownerAccountID int64, name string, issued time.Time, currencyCode string) (*Receipt, error)
	Update(ctx context.Context, r Receipt) error
	Delete(ctx context.Context, ownerAccountID, id int64) error

	ListItems(ctx context.Context, receiptID int64) ([]Item, error)
	GetItemWithReceipt(ctx context.Context, ownerAccountID, itemID int64) (*Item, *Receipt, error)
	InsertItem(ctx context.Context, receiptID int64, title, price string, quantity int32) (*Item, error)
	UpdateItem(ctx context.Context, it Item) error
	DeleteItem(ctx context.Context, itemID int64) error

	ListParticipants(ctx context.Context, receiptID int64) ([]int64, error)
	ReplaceParticipants(ctx context.Context, receiptID int64, userIDs []int64) error
	AddParticipant(ctx context.Context, receiptID, userID int64) error
	RemoveParticipant(ctx context.Context, receiptID, userID int64) error

	ListShares(ctx context.Context, receiptID int64) ([]ItemShare, error)
	ReplaceItemShares(ctx context.Context, itemID int64, shares []ShareEntry) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed receipts repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const receiptColumns = `id, owner_account_id, name, issued, currency_code, locked_at, created`

func (r *repository) List(ctx context.Context, ownerAccountID int64) ([]Receipt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipts
		 WHERE owner_account_id = $1 ORDER BY issued DESC, id DESC`, ownerAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, ownerAccountID, id int64) (*Receipt, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE owner_account_id = $1 AND id = $2`,
		ownerAccountID, id)
	return scanReceipt(row)
}

func (r *repository) Insert(ctx context.Context, ownerAccountID int64, name string, issued time.Time, currencyCode string) (*Receipt, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO receipts (owner_account_id, name, issued, currency_code)
		 VALUES ($1, $2, $3, $4) RETURNING `+receiptColumns,
		ownerAccountID, name, issued, currencyCode)
	return scanReceipt(row)
}

func (r *repository) Update(ctx context.Context, rec Receipt) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE receipts
		 SET name = $3, issued = $4, currency_code = $5, locked_at = $6
		 WHERE owner_account_id = $1 AND id = $2`,
		rec.OwnerAccountID, rec.ID, rec.Name, rec.Issued, rec.CurrencyCode, rec.LockedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, ownerAccountID, id int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM receipts WHERE owner_account_id = $1 AND id = $2`, ownerAccountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

const itemColumns = `id, receipt_id, title, price::text, quantity`

func (r *repository) ListItems(ctx context.Context, receiptID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM receipt_items WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.Title, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repository) GetItemWithReceipt(ctx context.Context, ownerAccountID, itemID int64) (*Item, *Receipt, error) {
	row := r.db.QueryRow(ctx,
		`SELECT i.id, i.receipt_id, i.title, i.price::text, i.quantity,
		        r.id, r.owner_account_id, r.name, r.issued, r.currency_code, r.locked_at, r.created
		 FROM receipt_items i
		 JOIN receipts r ON r.id = i.receipt_id
		 WHERE r.owner_account_id = $1 AND i.id = $2`, ownerAccountID, itemID)

	var it Item
	var rec Receipt
	var lockedAt pgtype.Timestamptz
	err := row.Scan(&it.ID, &it.ReceiptID, &it.Title, &it.Price, &it.Quantity,
		&rec.ID, &rec.OwnerAccountID, &rec.Name, &rec.Issued, &rec.CurrencyCode, &lockedAt, &rec.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNoRow
		}
		return nil, nil, err
	}
	if lockedAt.Valid {
		t := lockedAt.Time
		rec.LockedAt = &t
	}
	return &it, &rec, nil
}

func (r *repository) InsertItem(ctx context.Context, receiptID int64, title, price string, quantity int32) (*Item, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO receipt_items (receipt_id, title, price, quantity)
		 VALUES ($1, $2, $3::numeric, $4) RETURNING `+itemColumns,
		receiptID, title, price, quantity)

	var it Item
	if err := row.Scan(&it.ID, &it.ReceiptID, &it.Title, &it.Price, &it.Quantity); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *repository) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE receipt_items SET title = $2, price = $3::numeric, quantity = $4 WHERE id = $1`,
		it.ID, it.Title, it.Price, it.Quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM receipt_items WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) ListParticipants(ctx context.Context, receiptID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM receipt_participants WHERE receipt_id = $1 ORDER BY user_id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReplaceParticipants swaps the participant set. Shares of users no longer
// participating are removed with it.
func (r *repository) ReplaceParticipants(ctx context.Context, receiptID int64, userIDs []int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM item_participants
		 WHERE item_id IN (SELECT id FROM receipt_items WHERE receipt_id = $1)
		   AND user_id <> ALL($2)`, receiptID, userIDs)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM receipt_participants WHERE receipt_id = $1 AND user_id <> ALL($2)`,
		receiptID, userIDs); err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO receipt_participants (receipt_id, user_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`, receiptID, userIDs)
	return err
}

func (r *repository) AddParticipant(ctx context.Context, receiptID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO receipt_participants (receipt_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, receiptID, userID)
	return err
}

func (r *repository) RemoveParticipant(ctx context.Context, receiptID, userID int64) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM item_participants
		 WHERE user_id = $2
		   AND item_id IN (SELECT id FROM receipt_items WHERE receipt_id = $1)`,
		receiptID, userID); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM receipt_participants WHERE receipt_id = $1 AND user_id = $2`,
		receiptID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) ListShares(ctx context.Context, receiptID int64) ([]ItemShare, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ip.item_id, ip.user_id, ip.part
		 FROM item_participants ip
		 JOIN receipt_items i ON i.id = ip.item_id
		 WHERE i.receipt_id = $1 ORDER BY ip.item_id, ip.user_id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemShare
	for rows.Next() {
		var s ItemShare
		if err := rows.Scan(&s.ItemID, &s.UserID, &s.Part); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) ReplaceItemShares(ctx context.Context, itemID int64, shares []ShareEntry) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM item_participants WHERE item_id = $1`, itemID); err != nil {
		return err
	}
	for _, s := range shares {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO item_participants (item_id, user_id, part) VALUES ($1, $2, $3)`,
			itemID, s.UserID, s.Part); err != nil {
			return err
		}
	}
	return nil
}

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var rec Receipt
	var lockedAt pgtype.Timestamptz
	err := row.Scan(&rec.ID, &rec.OwnerAccountID, &rec.Name, &rec.Issued,
		&rec.CurrencyCode, &lockedAt, &rec.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	if lockedAt.Valid {
		t := lockedAt.Time
		rec.LockedAt = &t
	}
	return &rec, nil
}
