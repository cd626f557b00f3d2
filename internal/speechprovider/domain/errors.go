package domain

import "errors"

var (
	ErrNotFound            = errors.New("speech_provider_not_found")
	ErrInvalidTier         = errors.New("invalid_tier")
	ErrInvalidProviderType = errors.New("invalid_provider_type")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEndpoint     = errors.New("invalid_endpoint")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidConfig       = errors.New("invalid_config")
)
