package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *AssessmentRecord) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]AssessmentRecord, error)
}
