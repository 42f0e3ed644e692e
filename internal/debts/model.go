// Package debts implements the bilateral debt ledger: per-account debt rows,
// the lock state machine, auto-accept mirroring and the sync-intention
// handshake between two connected accounts.
package debts

import (
	"regexp"
	"strings"
	"time"
)

// Debt is one account's view of a monetary obligation with a counterparty
// user. Two accounts' views of the same real-world debt are two rows sharing
// the same ID with opposite-signed amounts; the pair is in sync when both
// locked timestamps are equal.
type Debt struct {
	ID              string     `json:"id"`
	OwnerAccountID  int64      `json:"ownerAccountId"`
	UserID          int64      `json:"userId"`
	CurrencyCode    string     `json:"currencyCode"`
	Amount          string     `json:"amount"`
	Timestamp       time.Time  `json:"timestamp"`
	Created         time.Time  `json:"created"`
	Note            string     `json:"note"`
	LockedTimestamp *time.Time `json:"lockedTimestamp,omitempty"`
	ReceiptID       *int64     `json:"receiptId,omitempty"`
}

// Locked reports whether the debt carries a locked timestamp.
func (d *Debt) Locked() bool {
	return d.LockedTimestamp != nil
}

// SyncIntention is a pending proposal by one account to bring the debt pair
// identified by DebtID into the proposed locked state. At most one intention
// exists per debt id.
type SyncIntention struct {
	DebtID          string     `json:"debtId"`
	OwnerAccountID  int64      `json:"ownerAccountId"`
	LockedTimestamp *time.Time `json:"lockedTimestamp,omitempty"`
	Created         time.Time  `json:"created"`
}

var amountPattern = regexp.MustCompile(`^-?[0-9]{1,12}(\.[0-9]{1,2})?$`)

// ValidAmount reports whether s is a well-formed signed decimal amount.
func ValidAmount(s string) bool {
	return amountPattern.MatchString(s)
}

// NegateAmount flips the sign of a decimal amount string exactly,
// without a round trip through floating point.
func NegateAmount(s string) string {
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return rest
	}
	if s == "0" || s == "0.0" || s == "0.00" {
		return s
	}
	return "-" + s
}
