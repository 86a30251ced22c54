package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus captures gateway outcome for a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSuccess, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// Payment is one attempt to pay the application fee. Status never leaves success.
type Payment struct {
	ID               string          `db:"id" json:"id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	Reference        string          `db:"reference" json:"reference"`
	GatewayReference *string         `db:"gateway_reference" json:"gateway_reference,omitempty"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	AmountMinor      int64           `db:"amount_minor" json:"amount_minor"`
	Status           PaymentStatus   `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentWithOwner adds the owning account for authorization and admin listings.
type PaymentWithOwner struct {
	Payment
	AccountID string `db:"account_id" json:"account_id"`
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
}

// PaymentFilter narrows admin listings.
type PaymentFilter struct {
	Status   *PaymentStatus
	Search   string
	Page     int
	PageSize int
}

// PaymentInitiation is handed to the client to open the gateway checkout.
type PaymentInitiation struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Email       string          `json:"email"`
	PublicKey   string          `json:"public_key"`
	CallbackURL string          `json:"callback_url"`
	Reused      bool            `json:"reused"`
}

// PaymentVerification reports the state after a verify call.
type PaymentVerification struct {
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	CanApply  bool          `json:"can_apply"`
	AlreadyOK bool          `json:"already_verified"`
}
