package domain

import (
	"context"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a claim value to a role. Unknown values become RoleUser.
func ParseRole(raw string) Role {
	if Role(strings.ToLower(strings.TrimSpace(raw))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Subject is the casbin subject for the role.
func (r Role) Subject() string {
	return "role:" + string(r)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   Role
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.UserID != ""
}
