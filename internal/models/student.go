package models

import "time"

// Student is the applicant profile attached 1:1 to an account.
// CanApply holds exactly when HasPaid is set or a referral code is attached.
type Student struct {
	ID             string    `db:"id" json:"id"`
	AccountID      string    `db:"account_id" json:"account_id"`
	Phone          string    `db:"phone" json:"phone"`
	HasPaid        bool      `db:"has_paid" json:"has_paid"`
	CanApply       bool      `db:"can_apply" json:"can_apply"`
	ReferralCodeID *string   `db:"referral_code_id" json:"referral_code_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AccessConsistent checks the canApply invariant for a loaded row.
func (s Student) AccessConsistent() bool {
	return s.CanApply == (s.HasPaid || s.ReferralCodeID != nil)
}

// StudentProfile joins a student with its account for read paths.
type StudentProfile struct {
	Student
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// Account returns the account fields carried by the profile.
func (p StudentProfile) Account() Account {
	return Account{ID: p.AccountID, Username: p.Username, Email: p.Email, FirstName: p.FirstName, LastName: p.LastName, Role: RoleStudent}
}
