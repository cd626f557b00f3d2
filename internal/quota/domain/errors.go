package domain

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidTier         = errors.New("invalid_tier")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidMinutes      = errors.New("invalid_minutes")
	ErrAccountNotFound     = errors.New("quota_account_not_found")
)
