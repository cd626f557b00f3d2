package authorization

import (
	"context"

	authdomain "github.com/tkwa12358/newenglish/internal/auth/domain"
)

type Service interface {
	// Authorize returns nil when the principal may perform action on object.
	Authorize(ctx context.Context, p authdomain.Principal, object, action string) error
}
