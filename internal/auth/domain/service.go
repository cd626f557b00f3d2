package domain

import (
	"context"
	"time"
)

type Service interface {
	// Issue signs a token for p that expires after ttl.
	Issue(ctx context.Context, p Principal, ttl time.Duration) (string, time.Time, error)
	Verify(ctx context.Context, raw string) (Principal, error)
}
