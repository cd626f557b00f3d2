package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, code *AuthorizationCode) error
	FindUnused(ctx context.Context, db *gorm.DB, code string) (*AuthorizationCode, error)
	// MarkUsed flips is_used only while it is still false and reports whether
	// this call won.
	MarkUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, used *bool, limit int) ([]AuthorizationCode, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]AuthorizationCode, error)
}
