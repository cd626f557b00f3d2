package repository

import (
	"context"
	"strings"

	"github.com/tkwa12358/newenglish/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert writes one entry. It runs on whatever db it is handed, so admin
// mutations can pass their transaction and keep the trail atomic with the change.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List pages newest first on (created_at, id). It fetches one row past Limit
// so the service can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{}).Scopes(
		matchColumns(map[string]string{
			"action":      filter.Action,
			"target_type": filter.TargetType,
			"target_id":   filter.TargetID,
			"actor_type":  filter.ActorType,
			"actor_id":    filter.ActorID,
		}),
		withinWindow(filter),
		afterCursor(filter.Cursor),
	).Order("created_at desc, id desc")

	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// matchColumns adds an equality clause for every non-blank value.
func matchColumns(values map[string]string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for column, value := range values {
			if value = strings.TrimSpace(value); value != "" {
				db = db.Where(column+" = ?", value)
			}
		}
		return db
	}
}

func withinWindow(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.StartAt != nil {
			db = db.Where("created_at >= ?", filter.StartAt.UTC())
		}
		if filter.EndAt != nil {
			db = db.Where("created_at <= ?", filter.EndAt.UTC())
		}
		return db
	}
}

func afterCursor(cursor *domain.AuditCursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor == nil {
			return db
		}
		return db.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
}
