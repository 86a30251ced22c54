package repository

import "errors"

var (
	// ErrCodeUnavailable means the referral code does not exist or was already consumed.
	ErrCodeUnavailable = errors.New("referral code unavailable")
	// ErrAlreadyGranted means the student already has application access.
	ErrAlreadyGranted = errors.New("application access already granted")
	// ErrDuplicate wraps unique violations on natural keys such as username or email.
	ErrDuplicate = errors.New("duplicate record")
)
