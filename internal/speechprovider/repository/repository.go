package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"gorm.io/gorm"
)

const selectColumns = `SELECT id, tier, name, provider_type, api_endpoint, api_key_secret_name,
	api_secret_key_name, region, model_identifier, config, is_active, is_default,
	priority, created_at, updated_at
	FROM speech_providers`

// Highest priority wins, except that an explicit default beats everything.
const preferenceOrder = `ORDER BY is_default DESC, priority DESC, created_at ASC, id ASC`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.ProviderConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO speech_providers (
			id, tier, name, provider_type, api_endpoint, api_key_secret_name,
			api_secret_key_name, region, model_identifier, config, is_active,
			is_default, priority, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Tier,
		item.Name,
		item.ProviderType,
		item.APIEndpoint,
		item.APIKeySecretName,
		item.APISecretKeyName,
		item.Region,
		item.ModelIdentifier,
		item.Config,
		item.IsActive,
		item.IsDefault,
		item.Priority,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, item *domain.ProviderConfig) error {
	return db.WithContext(ctx).Exec(
		`UPDATE speech_providers
		 SET name = ?, provider_type = ?, api_endpoint = ?, api_key_secret_name = ?,
		     api_secret_key_name = ?, region = ?, model_identifier = ?, config = ?,
		     priority = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name,
		item.ProviderType,
		item.APIEndpoint,
		item.APIKeySecretName,
		item.APISecretKeyName,
		item.Region,
		item.ModelIdentifier,
		item.Config,
		item.Priority,
		item.UpdatedAt,
		item.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ProviderConfig, error) {
	var item domain.ProviderConfig
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE id = ?`, id).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindActiveByID(ctx context.Context, db *gorm.DB, tier quotadomain.Tier, id snowflake.ID) (*domain.ProviderConfig, error) {
	var item domain.ProviderConfig
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE id = ? AND tier = ? AND is_active = ?`,
		id, tier, true,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindPreferred(ctx context.Context, db *gorm.DB, tier quotadomain.Tier) (*domain.ProviderConfig, error) {
	var item domain.ProviderConfig
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE tier = ? AND is_active = ? `+preferenceOrder+` LIMIT 1`,
		tier, true,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.ProviderConfig, error) {
	stmt := db.WithContext(ctx).Model(&domain.ProviderConfig{})
	if req.Tier != nil {
		stmt = stmt.Where("tier = ?", *req.Tier)
	}
	if req.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}

	var items []domain.ProviderConfig
	err := stmt.
		Order("tier ASC").
		Order("is_default DESC").
		Order("priority DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClearDefault(ctx context.Context, db *gorm.DB, tier quotadomain.Tier, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE speech_providers SET is_default = ?, updated_at = ? WHERE tier = ? AND is_default = ?`,
		false, now, tier, true,
	).Error
}

func (r *repo) MarkDefault(ctx context.Context, db *gorm.DB, tier quotadomain.Tier, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE speech_providers SET is_default = ?, updated_at = ? WHERE id = ? AND tier = ?`,
		true, now, id, tier,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE speech_providers SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, now, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM speech_providers WHERE id = ?`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
