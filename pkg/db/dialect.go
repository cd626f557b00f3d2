package db

import (
	"fmt"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypePostgres  = "postgres"
	TypeMySQL     = "mysql"
	TypeSQLite    = "sqlite"
	TypeSQLiteCGO = "sqlite3"
)

// Dialect picks the GORM driver for cfg.Type. "sqlite" is the pure Go
// driver; "sqlite3" links against the C library.
func Dialect(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)), nil
	case TypePostgres, "":
		return postgres.Open(PostgresDSN(cfg)), nil
	case TypeSQLite:
		return puresqlite.Open(sqlitePath(cfg)), nil
	case TypeSQLiteCGO:
		return sqlite.Open(sqlitePath(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

func PostgresDSN(cfg Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.Port,
		cfg.SSLMode,
	)
}

func sqlitePath(cfg Config) string {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return "newenglish.db"
	}
	if strings.HasPrefix(name, "file:") || strings.HasSuffix(name, ".db") {
		return name
	}
	return name + ".db"
}
