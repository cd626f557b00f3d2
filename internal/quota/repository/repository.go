package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tkwa12358/newenglish/internal/quota/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Ensure(ctx context.Context, db *gorm.DB, userID string, standard, professional int64, now time.Time) error {
	row := domain.UserQuota{
		UserID:              userID,
		StandardMinutes:     standard,
		ProfessionalMinutes: professional,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, userID string) (*domain.UserQuota, error) {
	var item domain.UserQuota
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, standard_minutes, professional_minutes, created_at, updated_at
		 FROM user_quotas
		 WHERE user_id = ?`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.UserID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Decrement(ctx context.Context, db *gorm.DB, userID string, tier domain.Tier, minutes int64, now time.Time) (bool, error) {
	col := tier.Column()
	res := db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE user_quotas
		 SET %[1]s = CASE WHEN %[1]s > ? THEN %[1]s - ? ELSE 0 END,
		     updated_at = ?
		 WHERE user_id = ?`, col),
		minutes, minutes, now, userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, userID string, tier domain.Tier, minutes int64, now time.Time) (bool, error) {
	col := tier.Column()
	res := db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE user_quotas
		 SET %[1]s = %[1]s + ?,
		     updated_at = ?
		 WHERE user_id = ?`, col),
		minutes, now, userID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
