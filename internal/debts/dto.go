package debts

import "time"

// AddDebtRequest creates a debt owned by the caller.
type AddDebtRequest struct {
	UserID       int64     `json:"userId" validate:"required,gt=0"`
	CurrencyCode string    `json:"currencyCode" validate:"required,len=3"`
	Amount       string    `json:"amount" validate:"required"`
	Timestamp    time.Time `json:"timestamp" validate:"required"`
	Note         string    `json:"note" validate:"max=500"`
	Locked       *bool     `json:"locked,omitempty"`
}

// UpdateDebtRequest mutates a debt. Nil fields are left untouched.
// An explicit Locked flag overrides the automatic relock rule.
type UpdateDebtRequest struct {
	CurrencyCode *string    `json:"currencyCode,omitempty" validate:"omitempty,len=3"`
	Amount       *string    `json:"amount,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Note         *string    `json:"note,omitempty" validate:"omitempty,max=500"`
	Locked       *bool      `json:"locked,omitempty"`
}

// BatchUpdateEntry addresses one debt inside an update-batch call.
type BatchUpdateEntry struct {
	ID string `json:"id" validate:"required,uuid"`
	UpdateDebtRequest
}

// AddBatchRequest groups debt creations into one transaction.
type AddBatchRequest struct {
	Debts []AddDebtRequest `json:"debts" validate:"required,min=1,dive"`
}

// UpdateBatchRequest groups debt updates into one transaction.
type UpdateBatchRequest struct {
	Debts []BatchUpdateEntry `json:"debts" validate:"required,min=1,dive"`
}
