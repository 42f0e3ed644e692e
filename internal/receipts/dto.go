package receipts

// CreateReceiptRequest opens a new receipt.
type CreateReceiptRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Issued       string `json:"issued" validate:"required,datetime=2006-01-02"`
	CurrencyCode string `json:"currencyCode" validate:"required,len=3"`
}

// UpdateReceiptRequest mutates receipt fields. The Locked flag drives the
// lock and unlock transitions.
type UpdateReceiptRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Issued       *string `json:"issued,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CurrencyCode *string `json:"currencyCode,omitempty" validate:"omitempty,len=3"`
	Locked       *bool   `json:"locked,omitempty"`
}

// ItemRequest creates or replaces a receipt line.
type ItemRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Price    string `json:"price" validate:"required"`
	Quantity int32  `json:"quantity" validate:"required,gte=1"`
}

// SetParticipantsRequest replaces the receipt's participant set.
type SetParticipantsRequest struct {
	UserIDs []int64 `json:"userIds" validate:"required,dive,gt=0"`
}

// AddParticipantRequest adds a single participant.
type AddParticipantRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// ShareEntry is one participant's part of an item.
type ShareEntry struct {
	UserID int64   `json:"userId" validate:"required,gt=0"`
	Part   float64 `json:"part" validate:"gte=0"`
}

// SetSharesRequest replaces an item's participant shares.
type SetSharesRequest struct {
	Participants []ShareEntry `json:"participants" validate:"required,dive"`
}
