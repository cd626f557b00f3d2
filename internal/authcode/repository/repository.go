package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tkwa12358/newenglish/internal/authcode/domain"
	"gorm.io/gorm"
)

const selectColumns = `SELECT id, code, code_type, tier, minutes_amount, is_used,
	used_by, used_at, expires_at, created_at
	FROM authorization_codes`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *domain.AuthorizationCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO authorization_codes (
			id, code, code_type, tier, minutes_amount, is_used, used_by,
			used_at, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID,
		code.Code,
		code.CodeType,
		code.Tier,
		code.MinutesAmount,
		code.IsUsed,
		code.UsedBy,
		code.UsedAt,
		code.ExpiresAt,
		code.CreatedAt,
	).Error
}

func (r *repo) FindUnused(ctx context.Context, db *gorm.DB, code string) (*domain.AuthorizationCode, error) {
	var item domain.AuthorizationCode
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE code = ? AND is_used = ?`,
		code,
		false,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE authorization_codes
		 SET is_used = ?, used_by = ?, used_at = ?
		 WHERE id = ? AND is_used = ?`,
		true,
		userID,
		at,
		id,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, used *bool, limit int) ([]domain.AuthorizationCode, error) {
	query := selectColumns
	args := []any{}
	if used != nil {
		query += ` WHERE is_used = ?`
		args = append(args, *used)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var items []domain.AuthorizationCode
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.AuthorizationCode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.AuthorizationCode
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE id IN ? ORDER BY created_at ASC, id ASC`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
