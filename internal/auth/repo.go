package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitbook/splitbook/internal/platform/db"
)

// ErrNoRow is returned by repository lookups that matched nothing.
var ErrNoRow = errors.New("auth: no row")

// Repository persists accounts, sessions and reset intentions.
type Repository interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	UpdatePassword(ctx context.Context, accountID int64, passwordHash string) error

	CreateSession(ctx context.Context, sess Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	ExtendSession(ctx context.Context, token string, expires time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteAccountSessions(ctx context.Context, accountID int64) error
	ListSessions(ctx context.Context, accountID int64) ([]Session, error)

	CreateResetIntention(ctx context.Context, in ResetPasswordIntention) error
	GetResetIntention(ctx context.Context, token string) (*ResetPasswordIntention, error)
	DeleteResetIntention(ctx context.Context, token string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error) {
	var acc Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO accounts (email, password_hash) VALUES ($1, $2)
			 RETURNING id, email, password_hash, created`, email, passwordHash)
		if err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Created); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO account_settings (account_id) VALUES ($1)`, acc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *repository) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(ctx,
		`SELECT id, email, password_hash, created FROM accounts WHERE email = $1`, email)
}

func (r *repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return r.scanAccount(ctx,
		`SELECT id, email, password_hash, created FROM accounts WHERE id = $1`, id)
}

func (r *repository) scanAccount(ctx context.Context, query string, arg any) (*Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	return &acc, nil
}

func (r *repository) UpdatePassword(ctx context.Context, accountID int64, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE id = $1`, accountID, passwordHash)
	return err
}

func (r *repository) CreateSession(ctx context.Context, sess Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (token, account_id, created, expires) VALUES ($1, $2, $3, $4)`,
		sess.Token, sess.AccountID, sess.Created, sess.Expires)
	return err
}

func (r *repository) GetSession(ctx context.Context, token string) (*Session, error) {
	var sess Session
	err := r.pool.QueryRow(ctx,
		`SELECT token, account_id, created, expires FROM sessions WHERE token = $1`, token).
		Scan(&sess.Token, &sess.AccountID, &sess.Created, &sess.Expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	return &sess, nil
}

func (r *repository) ExtendSession(ctx context.Context, token string, expires time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET expires = $2 WHERE token = $1`, token, expires)
	return err
}

func (r *repository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (r *repository) DeleteAccountSessions(ctx context.Context, accountID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	return err
}

func (r *repository) ListSessions(ctx context.Context, accountID int64) ([]Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT token, account_id, created, expires FROM sessions
		 WHERE account_id = $1 ORDER BY created DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Token, &sess.AccountID, &sess.Created, &sess.Expires); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (r *repository) CreateResetIntention(ctx context.Context, in ResetPasswordIntention) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reset_password_intentions (token, account_id, expires) VALUES ($1, $2, $3)`,
		in.Token, in.AccountID, in.Expires)
	return err
}

func (r *repository) GetResetIntention(ctx context.Context, token string) (*ResetPasswordIntention, error) {
	var in ResetPasswordIntention
	err := r.pool.QueryRow(ctx,
		`SELECT token, account_id, expires FROM reset_password_intentions WHERE token = $1`, token).
		Scan(&in.Token, &in.AccountID, &in.Expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRow
		}
		return nil, err
	}
	return &in, nil
}

func (r *repository) DeleteResetIntention(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM reset_password_intentions WHERE token = $1`, token)
	return err
}
