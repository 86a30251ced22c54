package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a student account, optionally redeeming a referral code.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=150,alphanumunicode"`
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	ReferralCode    string `json:"referral_code" validate:"omitempty,max=10"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and account info.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	Account     AccountInfo `json:"account"`
	IssuedAt    time.Time   `json:"issued_at"`
}

// AccountInfo describes the authenticated account in responses.
type AccountInfo struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
}

// NewAccountInfo projects an account into its public shape.
func NewAccountInfo(a Account) AccountInfo {
	return AccountInfo{ID: a.ID, Username: a.Username, Email: a.Email, DisplayName: a.DisplayName(), Role: a.Role}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID string   `json:"account_id"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	jwt.RegisteredClaims
}

// CreateStaffRequest provisions a staff or admin account from the command line.
type CreateStaffRequest struct {
	Username  string   `validate:"required,min=3,max=150"`
	Email     string   `validate:"required,email"`
	FirstName string   `validate:"max=150"`
	LastName  string   `validate:"max=150"`
	Password  string   `validate:"required,min=8"`
	Role      UserRole `validate:"required,oneof=STAFF ADMIN"`
}

// RequestMeta carries client details recorded in audit logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}
