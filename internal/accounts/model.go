// Package accounts manages per-account settings and the bilateral
// account-connection handshake.
package accounts

import "time"

// Settings holds per-account behavior flags.
type Settings struct {
	AccountID       int64 `json:"accountId"`
	AutoAcceptDebts bool  `json:"autoAcceptDebts"`
}

// ConnectionIntention is a pending proposal to link one of the proposer's
// users to another account. When both sides hold reciprocal proposals they
// are merged and both user records become connected.
type ConnectionIntention struct {
	ID              int64     `json:"id"`
	AccountID       int64     `json:"accountId"`
	TargetAccountID int64     `json:"targetAccountId"`
	UserID          int64     `json:"userId"`
	Created         time.Time `json:"created"`
}

// IntentionOverview splits intentions by direction for the caller.
type IntentionOverview struct {
	Outgoing []ConnectionIntention `json:"outgoing"`
	Incoming []ConnectionIntention `json:"incoming"`
}
