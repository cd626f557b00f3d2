package domain

import (
	"errors"

	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientBalance = quotadomain.ErrInsufficientBalance
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrAssessmentFailed    = errors.New("assessment_failed")

	// Adapter failure kinds.
	ErrProviderUnavailable  = errors.New("provider_unavailable")
	ErrAuthenticationFailed = errors.New("provider_authentication_failed")
	ErrMalformedResponse    = errors.New("provider_malformed_response")
	ErrUnsupported          = errors.New("provider_unsupported")
)

// FailureKind names the adapter failure wrapped by err, or "error" when err
// carries none of the typed kinds.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
