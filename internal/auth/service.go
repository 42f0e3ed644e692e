package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/splitbook/splitbook/internal/platform/db"
	"github.com/splitbook/splitbook/internal/platform/httpx"
)

// Mailer enqueues outbound mail without blocking the request.
type Mailer interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// ServiceConfig carries the session and reset token windows.
type ServiceConfig struct {
	SessionTTL         time.Duration
	SessionMaxLifetime time.Duration
	ResetTTL           time.Duration
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	mailer Mailer
	cfg    ServiceConfig
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, mailer Mailer, cfg ServiceConfig) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.SessionMaxLifetime <= 0 {
		cfg.SessionMaxLifetime = 30 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &Service{repo: repo, mailer: mailer, cfg: cfg, now: time.Now}
}

// Register creates an account with default settings and an initial session.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, *Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: hash password: %w", err)
	}
	acc, err := s.repo.CreateAccount(ctx, email, string(hash))
	if err != nil {
		if db.IsUniqueViolation(err, "accounts_email_key") {
			return nil, nil, httpx.Conflict("account with email %s already exists", email)
		}
		return nil, nil, err
	}
	sess, err := s.startSession(ctx, acc.ID)
	if err != nil {
		return nil, nil, err
	}
	return acc, sess, nil
}

// Login validates credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, *Session, error) {
	acc, err := s.repo.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, nil, httpx.Unauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, nil, httpx.Unauthorized("invalid credentials")
	}
	sess, err := s.startSession(ctx, acc.ID)
	if err != nil {
		return nil, nil, err
	}
	return acc, sess, nil
}

// Logout removes the session record.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// Account returns the account behind an id.
func (s *Service) Account(ctx context.Context, id int64) (*Account, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("account %d not found", id)
		}
		return nil, err
	}
	return acc, nil
}

// ValidateSession resolves a session token, sliding its expiration forward
// once more than half the window has elapsed, capped at the maximum session
// lifetime. Expired or unknown tokens yield UNAUTHORIZED.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, httpx.Unauthorized("invalid session token")
	}
	sess, err := s.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.Unauthorized("session not found")
		}
		return nil, err
	}

	now := s.now()
	if !sess.Expires.After(now) {
		_ = s.repo.DeleteSession(ctx, token)
		return nil, httpx.Unauthorized("session expired")
	}

	elapsed := now.Add(s.cfg.SessionTTL).Sub(sess.Expires)
	if elapsed > s.cfg.SessionTTL/2 {
		extended := now.Add(s.cfg.SessionTTL)
		if cap := sess.Created.Add(s.cfg.SessionMaxLifetime); extended.After(cap) {
			extended = cap
		}
		if extended.After(sess.Expires) {
			if err := s.repo.ExtendSession(ctx, token, extended); err != nil {
				return nil, err
			}
			sess.Expires = extended
		}
	}
	return sess, nil
}

// Sessions lists the account's open sessions.
func (s *Service) Sessions(ctx context.Context, accountID int64) ([]Session, error) {
	return s.repo.ListSessions(ctx, accountID)
}

// RevokeSession deletes one of the account's own sessions.
func (s *Service) RevokeSession(ctx context.Context, accountID int64, token string) error {
	sess, err := s.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("session not found")
		}
		return err
	}
	if sess.AccountID != accountID {
		return httpx.Forbidden("session belongs to another account")
	}
	return s.repo.DeleteSession(ctx, token)
}

// ChangePassword verifies the current password and replaces the hash.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("account %d not found", accountID)
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(current)); err != nil {
		return httpx.Forbidden("current password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, accountID, string(hash))
}

// RequestPasswordReset creates a reset intention and mails the token.
// Unknown emails are ignored so the endpoint does not leak account existence.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	acc, err := s.repo.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil
		}
		return err
	}
	intention := ResetPasswordIntention{
		Token:     uuid.NewString(),
		AccountID: acc.ID,
		Expires:   s.now().Add(s.cfg.ResetTTL),
	}
	if err := s.repo.CreateResetIntention(ctx, intention); err != nil {
		return err
	}
	if s.mailer == nil {
		return nil
	}
	body := "Use the token below to reset your password:\n\n" + intention.Token
	return s.mailer.EnqueueMail(ctx, acc.Email, "Reset your password", body)
}

// ConfirmPasswordReset consumes a reset token and replaces the password.
// All open sessions are revoked so old cookies stop working.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	intention, err := s.repo.GetResetIntention(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("reset token not found")
		}
		return err
	}
	if !intention.Expires.After(s.now()) {
		_ = s.repo.DeleteResetIntention(ctx, token)
		return httpx.PreconditionFailed("reset token expired")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, intention.AccountID, string(hash)); err != nil {
		return err
	}
	if err := s.repo.DeleteResetIntention(ctx, token); err != nil {
		return err
	}
	return s.repo.DeleteAccountSessions(ctx, intention.AccountID)
}

func (s *Service) startSession(ctx context.Context, accountID int64) (*Session, error) {
	now := s.now()
	sess := Session{
		Token:     uuid.NewString(),
		AccountID: accountID,
		Created:   now,
		Expires:   now.Add(s.cfg.SessionTTL),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
