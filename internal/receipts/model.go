// Package receipts implements receipt splitting: items, participant shares,
// the lock step that derives debts from the split, and the guard that keeps
// locked receipts immutable.
package receipts

import "time"

// Receipt is an itemized bill owned by one account. Locking freezes the
// split and derives a debt per non-owner participant.
type Receipt struct {
	ID             int64      `json:"id"`
	OwnerAccountID int64      `json:"ownerAccountId"`
	Name           string     `json:"name"`
	Issued         time.Time  `json:"issued"`
	CurrencyCode   string     `json:"currencyCode"`
	LockedAt       *time.Time `json:"lockedAt,omitempty"`
	Created        time.Time  `json:"created"`
}

// Locked reports whether the receipt is frozen.
func (r *Receipt) Locked() bool {
	return r.LockedAt != nil
}

// Item is one line of a receipt. Price is a decimal string, never a float.
type Item struct {
	ID        int64  `json:"id"`
	ReceiptID int64  `json:"receiptId"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Quantity  int32  `json:"quantity"`
}

// ItemShare assigns a participant a weighted part of one item. The item's
// cost is split proportionally to the parts of its participants.
type ItemShare struct {
	ItemID int64   `json:"itemId"`
	UserID int64   `json:"userId"`
	Part   float64 `json:"part"`
}

// Detail is a receipt with its items, participant user ids and item shares.
type Detail struct {
	Receipt
	Items        []Item      `json:"items"`
	Participants []int64     `json:"participants"`
	Shares       []ItemShare `json:"shares"`
}
