package accounts

import (
	"context"
	"errors"

	"github.com/splitbook/splitbook/internal/platform/db"
	"github.com/splitbook/splitbook/internal/platform/httpx"
	"github.com/splitbook/splitbook/internal/users"
)

// Mailer enqueues outbound mail without blocking the request.
type Mailer interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// ProposalResult reports whether a proposal merged with a reciprocal one.
type ProposalResult struct {
	Merged bool `json:"merged"`
}

// Service wraps settings and connection-handshake rules.
type Service struct {
	repo     Repository
	userRepo users.Repository
	mailer   Mailer
}

// NewService constructs a Service.
func NewService(repo Repository, userRepo users.Repository, mailer Mailer) *Service {
	return &Service{repo: repo, userRepo: userRepo, mailer: mailer}
}

// Settings returns the account's settings.
func (s *Service) Settings(ctx context.Context, accountID int64) (*Settings, error) {
	return s.repo.GetSettings(ctx, accountID)
}

// UpdateSettings upserts the account's settings.
func (s *Service) UpdateSettings(ctx context.Context, accountID int64, autoAccept bool) (*Settings, error) {
	settings := Settings{AccountID: accountID, AutoAcceptDebts: autoAccept}
	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// AutoAcceptDebts reports whether the account mirrors debt mutations to
// connected counterparts automatically.
func (s *Service) AutoAcceptDebts(ctx context.Context, accountID int64) (bool, error) {
	settings, err := s.repo.GetSettings(ctx, accountID)
	if err != nil {
		return false, err
	}
	return settings.AutoAcceptDebts, nil
}

// ProposeConnection proposes linking one of the caller's users to the
// account behind targetEmail. A reciprocal proposal merges immediately.
func (s *Service) ProposeConnection(ctx context.Context, accountID, userID int64, targetEmail string) (*ProposalResult, error) {
	targetAccountID, err := s.repo.FindAccountIDByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, httpx.NotFound("no account with email %s", targetEmail)
		}
		return nil, err
	}
	if targetAccountID == accountID {
		return nil, httpx.BadRequest("cannot connect an account to itself")
	}

	user, err := s.userRepo.Get(ctx, accountID, userID)
	if err != nil {
		if errors.Is(err, users.ErrNoRow) {
			return nil, httpx.NotFound("user %d not found", userID)
		}
		return nil, err
	}
	if user.ConnectedAccountID != nil {
		return nil, httpx.Conflict("user %d is already connected to an account", userID)
	}

	merged, err := s.repo.Propose(ctx, accountID, targetAccountID, userID)
	if err != nil {
		if constraint, ok := db.UniqueConstraint(err); ok {
			switch constraint {
			case "connection_intentions_pair_key":
				return nil, httpx.Conflict("a connection to this account is already proposed")
			case "connection_intentions_user_key":
				return nil, httpx.Conflict("user %d already has a pending connection proposal", userID)
			case "users_owner_connected_key":
				return nil, httpx.Conflict("accounts are already connected")
			}
			return nil, httpx.Conflict("conflicting connection proposal")
		}
		return nil, err
	}

	if merged && s.mailer != nil {
		_ = s.mailer.EnqueueMail(ctx, targetEmail, "Accounts connected",
			"Your account is now connected; debts can be synchronized.")
	}
	return &ProposalResult{Merged: merged}, nil
}

// Intentions lists the caller's outgoing and incoming proposals.
func (s *Service) Intentions(ctx context.Context, accountID int64) (*IntentionOverview, error) {
	return s.repo.ListIntentions(ctx, accountID)
}

// RemoveIntention withdraws an outgoing proposal or rejects an incoming one.
func (s *Service) RemoveIntention(ctx context.Context, accountID, id int64) error {
	in, err := s.repo.GetIntention(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return httpx.NotFound("connection intention %d not found", id)
		}
		return err
	}
	if in.AccountID != accountID && in.TargetAccountID != accountID {
		return httpx.Forbidden("connection intention %d belongs to other accounts", id)
	}
	return s.repo.DeleteIntention(ctx, id)
}
