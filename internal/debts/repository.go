package debts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitbook/splitbook/internal/platform/db"
)

// ErrNoRow is returned when a lookup matches nothing.
var ErrNoRow = errors.New("debts: no row")

// Repository persists debts and sync intentions. WithTx yields a repository
// bound to a transaction; mirrored writes always go through it.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, ownerAccountID int64, id string) (*Debt, error)
	GetAllOwners(ctx context.Context, id string) ([]Debt, error)
	GetByReceiptKey(ctx context.Context, ownerAccountID, receiptID, userID int64) (*Debt, error)
	List(ctx context.Context, ownerAccountID int64, userID *int64) ([]Debt, error)
	Insert(ctx context.Context, d Debt) error
	Update(ctx context.Context, d Debt) error
	Upsert(ctx context.Context, d Debt) error
	Delete(ctx context.Context, ownerAccountID int64, id string) error

	GetIntention(ctx context.Context, debtID string) (*SyncIntention, error)
	InsertIntention(ctx context.Context, in SyncIntention) error
	DeleteIntention(ctx context.Context, debtID string) error
	ListIntentions(ctx context.Context, accountID int64) ([]SyncIntention, error)
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

// NewRepository constructs the PostgreSQL-backed debts repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const debtColumns = `id, owner_account_id, user_id, currency_code, amount::text,
	ts, created, note, locked_timestamp, receipt_id`

func (r *repository) Get(ctx context.Context, ownerAccountID int64, id string) (*Debt, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE owner_account_id = $1 AND id = $2`,
		ownerAccountID, id)
	return scanDebt(row)
}

func (r *repository) GetAllOwners(ctx context.Context, id string) ([]Debt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = $1 ORDER BY owner_account_id`, id)
	if err != nil {
		return nil, err
	}
	return collectDebts(rows)
}

func (r *repository) GetByReceiptKey(ctx context.Context, ownerAccountID, receiptID, userID int64) (*Debt, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+debtColumns+` FROM debts
		 WHERE owner_account_id = $1 AND receipt_id = $2 AND user_id = $3`,
		ownerAccountID, receiptID, userID)
	return scanDebt(row)
}

func (r *repository) List(ctx context.Context, ownerAccountID int64, userID *int64) ([]Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE owner_account_id = $1`
	args := []any{ownerAccountID}
	if userID != nil {
		query += ` AND user_id = $2`
		args = append(args, *userID)
	}
	query += ` ORDER BY ts DESC, created DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDebts(rows)
}

func (r *repository) Insert(ctx context.Context, d Debt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO debts (id, owner_account_id, user_id, currency_code, amount, ts, created, note, locked_timestamp, receipt_id)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)`,
		d.ID, d.OwnerAccountID, d.UserID, d.CurrencyCode, d.Amount,
		d.Timestamp, d.Created, d.Note, d.LockedTimestamp, d.ReceiptID)
	return err
}

func (r *repository) Update(ctx context.Context, d Debt) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE debts
		 SET user_id = $3, currency_code = $4, amount = $5::numeric, ts = $6,
		     note = $7, locked_timestamp = $8
		 WHERE owner_account_id = $2 AND id = $1`,
		d.ID, d.OwnerAccountID, d.UserID, d.CurrencyCode, d.Amount,
		d.Timestamp, d.Note, d.LockedTimestamp)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) Upsert(ctx context.Context, d Debt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO debts (id, owner_account_id, user_id, currency_code, amount, ts, created, note, locked_timestamp, receipt_id)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
		 ON CONFLICT (id, owner_account_id) DO UPDATE
		 SET user_id = EXCLUDED.user_id,
		     currency_code = EXCLUDED.currency_code,
		     amount = EXCLUDED.amount,
		     ts = EXCLUDED.ts,
		     note = EXCLUDED.note,
		     locked_timestamp = EXCLUDED.locked_timestamp`,
		d.ID, d.OwnerAccountID, d.UserID, d.CurrencyCode, d.Amount,
		d.Timestamp, d.Created, d.Note, d.LockedTimestamp, d.ReceiptID)
	return err
}

func (r *repository) Delete(ctx context.Context, ownerAccountID int64, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM debts WHERE owner_account_id = $1 AND id = $2`, ownerAccountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) GetIntention(ctx context.Context, debtID string) (*SyncIntention, error) {
	var in SyncIntention
	err := r.db.QueryRow(ctx,
		`SELECT debt_id, owner_account_id, locked_timestamp, created
		 FROM debts_sync_intentions WHERE debt_id = $1`, debtID).
		Scan(&in.DebtID, &in.OwnerAccountID, &in.LockedTimestamp, &in.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	return &in, nil
}

func (r *repository) InsertIntention(ctx context.Context, in SyncIntention) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO debts_sync_intentions (debt_id, owner_account_id, locked_timestamp)
		 VALUES ($1, $2, $3)`, in.DebtID, in.OwnerAccountID, in.LockedTimestamp)
	return err
}

func (r *repository) DeleteIntention(ctx context.Context, debtID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM debts_sync_intentions WHERE debt_id = $1`, debtID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *repository) ListIntentions(ctx context.Context, accountID int64) ([]SyncIntention, error) {
	rows, err := r.db.Query(ctx,
		`SELECT debt_id, owner_account_id, locked_timestamp, created
		 FROM debts_sync_intentions
		 WHERE owner_account_id = $1
		    OR debt_id IN (SELECT id FROM debts WHERE owner_account_id = $1)
		 ORDER BY created`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncIntention
	for rows.Next() {
		var in SyncIntention
		if err := rows.Scan(&in.DebtID, &in.OwnerAccountID, &in.LockedTimestamp, &in.Created); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func scanDebt(row pgx.Row) (*Debt, error) {
	var d Debt
	var locked pgtype.Timestamptz
	var receiptID pgtype.Int8
	err := row.Scan(&d.ID, &d.OwnerAccountID, &d.UserID, &d.CurrencyCode, &d.Amount,
		&d.Timestamp, &d.Created, &d.Note, &locked, &receiptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	if locked.Valid {
		t := locked.Time
		d.LockedTimestamp = &t
	}
	if receiptID.Valid {
		v := receiptID.Int64
		d.ReceiptID = &v
	}
	return &d, nil
}

func collectDebts(rows pgx.Rows) ([]Debt, error) {
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
