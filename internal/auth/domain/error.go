package domain

import "errors"

var (
	ErrMissingToken        = errors.New("missing_token")
	ErrInvalidToken        = errors.New("invalid_token")
	ErrTokenExpired        = errors.New("token_expired")
	ErrSecretNotConfigured = errors.New("jwt_secret_not_configured")
)
