package models

import "github.com/shopspring/decimal"

// StudentOverview is what the logged-in applicant sees first.
type StudentOverview struct {
	Account     AccountInfo          `json:"account"`
	Phone       string               `json:"phone"`
	HasPaid     bool                 `json:"has_paid"`
	CanApply    bool                 `json:"can_apply"`
	ViaReferral bool                 `json:"via_referral"`
	Fee         decimal.Decimal      `json:"fee"`
	Currency    string               `json:"currency"`
	PublicKey   string               `json:"public_key"`
	Application *ApplicationOverview `json:"application,omitempty"`
}

// ApplicationOverview summarises progress of the student's form.
type ApplicationOverview struct {
	ID                string       `json:"id"`
	ApplicationNumber string       `json:"application_number"`
	Status            ReviewStatus `json:"status"`
	IsSubmitted       bool         `json:"is_submitted"`
	HasPassport       bool         `json:"has_passport"`
	HasDeclaration    bool         `json:"has_declaration"`
}
