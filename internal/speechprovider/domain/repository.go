package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *ProviderConfig) error
	Update(ctx context.Context, db *gorm.DB, item *ProviderConfig) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProviderConfig, error)
	FindActiveByID(ctx context.Context, db *gorm.DB, tier quotadomain.Tier, id snowflake.ID) (*ProviderConfig, error)
	FindPreferred(ctx context.Context, db *gorm.DB, tier quotadomain.Tier) (*ProviderConfig, error)
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]ProviderConfig, error)
	ClearDefault(ctx context.Context, db *gorm.DB, tier quotadomain.Tier, now time.Time) error
	MarkDefault(ctx context.Context, db *gorm.DB, tier quotadomain.Tier, id snowflake.ID, now time.Time) (bool, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
