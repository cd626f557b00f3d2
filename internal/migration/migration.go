package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	assessmentdomain "github.com/tkwa12358/newenglish/internal/assessment/domain"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	authcodedomain "github.com/tkwa12358/newenglish/internal/authcode/domain"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	providerdomain "github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"gorm.io/gorm"
)

// Models lists every table the gateway owns. Non-postgres databases are
// created from it with AutoMigrate.
func Models() []any {
	return []any{
		&quotadomain.UserQuota{},
		&providerdomain.ProviderConfig{},
		&assessmentdomain.AssessmentRecord{},
		&authcodedomain.AuthorizationCode{},
		&auditdomain.AuditLog{},
	}
}

// Run applies the embedded SQL on postgres and AutoMigrate elsewhere.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.
	return nil
}
