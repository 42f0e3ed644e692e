// Package auth implements accounts, sessions and password recovery.
package auth

import "time"

// Account is a registered tenant. Every owned row in the system is scoped
// to exactly one account.
type Account struct {
	ID      int64     `json:"id"`
	Email   string    `json:"email"`
	Created time.Time `json:"created"`

	PasswordHash string `json:"-"`
}

// Session is a server-side login session identified by an opaque UUID token.
type Session struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"accountId"`
	Created   time.Time `json:"created"`
	Expires   time.Time `json:"expires"`
}

// ResetPasswordIntention is a single-use, expiring password reset token.
type ResetPasswordIntention struct {
	Token     string
	AccountID int64
	Expires   time.Time
}
