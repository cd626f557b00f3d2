// Package auditcontext carries request metadata that audit entries record
// alongside the action itself.
package auditcontext

import (
	"context"
	"strings"
)

type ctxKey int

const (
	actorTypeKey ctxKey = iota
	actorIDKey
	requestIDKey
	ipAddressKey
	userAgentKey
)

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorFromContext(ctx context.Context) (string, string) {
	return value(ctx, actorTypeKey), value(ctx, actorIDKey)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return value(ctx, requestIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	return value(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(userAgent))
}

func UserAgentFromContext(ctx context.Context) string {
	return value(ctx, userAgentKey)
}

func value(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
