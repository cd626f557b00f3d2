package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Ensure(ctx context.Context, db *gorm.DB, userID string, standard, professional int64, now time.Time) error
	Get(ctx context.Context, db *gorm.DB, userID string) (*UserQuota, error)
	// Decrement lowers the tier's balance by minutes, stopping at zero.
	Decrement(ctx context.Context, db *gorm.DB, userID string, tier Tier, minutes int64, now time.Time) (bool, error)
	Increment(ctx context.Context, db *gorm.DB, userID string, tier Tier, minutes int64, now time.Time) (bool, error)
}
