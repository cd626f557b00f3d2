package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	// List returns up to Limit+1 rows so callers can tell whether more exist.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
