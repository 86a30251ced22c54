package models

import "time"

// ReferralCode is a single-use token granting application access without payment.
type ReferralCode struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	IsUsed          bool       `db:"is_used" json:"is_used"`
	UsedByAccountID *string    `db:"used_by_account_id" json:"used_by_account_id,omitempty"`
	UsedAt          *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// ReferralCodeFilter narrows admin listings.
type ReferralCodeFilter struct {
	Used     *bool
	Page     int
	PageSize int
}

// RedeemReferralRequest is the student payload for attaching a code.
type RedeemReferralRequest struct {
	Code string `json:"code" validate:"required,max=10"`
}

// GenerateReferralCodesRequest asks for count new codes.
type GenerateReferralCodesRequest struct {
	Count int `json:"count" validate:"required,min=1,max=1000"`
}
