package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitbook/splitbook/internal/platform/db"
)

// ErrNoRow is returned when a lookup matches nothing.
var ErrNoRow = errors.New("accounts: no row")

// Repository persists settings and connection intentions.
type Repository interface {
	GetSettings(ctx context.Context, accountID int64) (*Settings, error)
	UpdateSettings(ctx context.Context, settings Settings) error

	FindAccountIDByEmail(ctx context.Context, email string) (int64, error)
	ListIntentions(ctx context.Context, accountID int64) (*IntentionOverview, error)
	GetIntention(ctx context.Context, id int64) (*ConnectionIntention, error)
	Propose(ctx context.Context, accountID, targetAccountID, userID int64) (merged bool, err error)
	DeleteIntention(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed accounts repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetSettings(ctx context.Context, accountID int64) (*Settings, error) {
	s := Settings{AccountID: accountID}
	err := r.pool.QueryRow(ctx,
		`SELECT auto_accept_debts FROM account_settings WHERE account_id = $1`, accountID).
		Scan(&s.AutoAcceptDebts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Settings rows are created at registration; treat a missing
			// row as defaults rather than an error.
			return &s, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) UpdateSettings(ctx context.Context, settings Settings) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO account_settings (account_id, auto_accept_debts) VALUES ($1, $2)
		 ON CONFLICT (account_id) DO UPDATE SET auto_accept_debts = EXCLUDED.auto_accept_debts`,
		settings.AccountID, settings.AutoAcceptDebts)
	return err
}

func (r *repository) FindAccountIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM accounts WHERE email = $1`, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoRow
		}
		return 0, err
	}
	return id, nil
}

const intentionColumns = `id, account_id, target_account_id, user_id, created`

func (r *repository) ListIntentions(ctx context.Context, accountID int64) (*IntentionOverview, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+intentionColumns+` FROM account_connection_intentions
		 WHERE account_id = $1 OR target_account_id = $1 ORDER BY created`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overview := &IntentionOverview{}
	for rows.Next() {
		var in ConnectionIntention
		if err := rows.Scan(&in.ID, &in.AccountID, &in.TargetAccountID, &in.UserID, &in.Created); err != nil {
			return nil, err
		}
		if in.AccountID == accountID {
			overview.Outgoing = append(overview.Outgoing, in)
		} else {
			overview.Incoming = append(overview.Incoming, in)
		}
	}
	return overview, rows.Err()
}

func (r *repository) GetIntention(ctx context.Context, id int64) (*ConnectionIntention, error) {
	var in ConnectionIntention
	err := r.pool.QueryRow(ctx,
		`SELECT `+intentionColumns+` FROM account_connection_intentions WHERE id = $1`, id).
		Scan(&in.ID, &in.AccountID, &in.TargetAccountID, &in.UserID, &in.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	return &in, nil
}

// Propose records a connection intention. When the target account already
// holds a reciprocal intention pointing back, both users are connected and
// both intention rows removed inside one transaction.
func (r *repository) Propose(ctx context.Context, accountID, targetAccountID, userID int64) (bool, error) {
	merged := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var reciprocalID, reciprocalUserID int64
		err := tx.QueryRow(ctx,
			`SELECT id, user_id FROM account_connection_intentions
			 WHERE account_id = $1 AND target_account_id = $2
			 FOR UPDATE`, targetAccountID, accountID).
			Scan(&reciprocalID, &reciprocalUserID)
		switch {
		case err == nil:
			if _, err := tx.Exec(ctx,
				`UPDATE users SET connected_account_id = $2 WHERE id = $1`,
				userID, targetAccountID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE users SET connected_account_id = $2 WHERE id = $1`,
				reciprocalUserID, accountID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`DELETE FROM account_connection_intentions WHERE id = ANY($1)`,
				[]int64{reciprocalID}); err != nil {
				return err
			}
			merged = true
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			_, err := tx.Exec(ctx,
				`INSERT INTO account_connection_intentions (account_id, target_account_id, user_id)
				 VALUES ($1, $2, $3)`, accountID, targetAccountID, userID)
			return err
		default:
			return err
		}
	})
	return merged, err
}

func (r *repository) DeleteIntention(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM account_connection_intentions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}
