package domain

import "errors"

var (
	ErrInvalidOrUsedCode = errors.New("invalid_or_used_code")
	ErrExpired           = errors.New("code_expired")
	ErrInvalidCode       = errors.New("invalid_code")
	ErrInvalidCodeType   = errors.New("invalid_code_type")
	ErrInvalidCount      = errors.New("invalid_count")
	ErrInvalidUser       = errors.New("invalid_user")
)
