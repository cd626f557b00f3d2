package domain

import "context"

type Service interface {
	Balance(ctx context.Context, userID string, tier Tier) (int64, error)
	// EnsureAvailable returns ErrInsufficientBalance together with the
	// balance when the pool is empty.
	EnsureAvailable(ctx context.Context, userID string, tier Tier) (int64, error)
	Charge(ctx context.Context, userID string, tier Tier, durationSeconds int) (ChargeResult, error)
	Credit(ctx context.Context, userID string, tier Tier, minutes int64) (CreditResult, error)
	Revert(ctx context.Context, userID string, tier Tier, minutes int64) error
	Get(ctx context.Context, userID string) (Balances, error)
}
