// Package users manages counterparty records owned by an account.
package users

import "time"

// User is an account-owned counterparty. ConnectedAccountID links the record
// to the real account behind the counterparty once both sides agreed; the
// link is the basis for debt mirroring.
type User struct {
	ID                 int64     `json:"id"`
	OwnerAccountID     int64     `json:"ownerAccountId"`
	Name               string    `json:"name"`
	ConnectedAccountID *int64    `json:"connectedAccountId,omitempty"`
	Created            time.Time `json:"created"`
}
